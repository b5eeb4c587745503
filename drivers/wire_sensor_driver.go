package drivers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	wireSystemPath      string = "/sys/bus/w1/devices"
	wireBusMasterPrefix string = "w1_bus_master"

	wireSensorDriverName string = "wire"

	defaultIdleTime = 2 * time.Second
)

// Wire reads DS18B20 temperature probes through the kernel w1-therm sysfs
// interface. A Wire is owned by one caller: configuration setters and polls
// must not run concurrently.
type Wire struct {
	// DevicePath is where the 1-wire slaves are listed, /sys/bus/w1/devices by default.
	DevicePath string
	// Devices limits the driver to these slave ids, all discovered slaves when empty.
	Devices  []string
	Scale    Scale
	IdleTime Duration

	active  []string
	idleSet bool
	ready   bool
	log     *zerolog.Logger
	sleep   sleepFunc

	onState func(pollState)
}

func (w1 *Wire) SetLogger(log zerolog.Logger) {
	l := log.With().Str("driver", wireSensorDriverName).Logger()
	w1.log = &l
}

func (w1 *Wire) Setup(ctx context.Context) error {
	if w1.DevicePath == "" {
		w1.DevicePath = wireSystemPath
	}
	if w1.Scale == "" {
		w1.Scale = Celsius
	}
	if err := w1.SetScale(string(w1.Scale)); err != nil {
		return errors.Wrap(err, "failed to init wire sensor driver")
	}
	if w1.IdleTime.Duration == 0 && !w1.idleSet {
		w1.IdleTime.Duration = defaultIdleTime
	}
	if err := w1.SetIdleTime(w1.IdleTime.Duration); err != nil {
		return errors.Wrap(err, "failed to init wire sensor driver")
	}
	if w1.sleep == nil {
		w1.sleep = sleepContext
	}
	if w1.log == nil {
		nop := zerolog.Nop()
		w1.log = &nop
	}

	if err := w1.SetDevices(w1.Devices); err != nil {
		return errors.Wrapf(err, "failed to init wire sensor driver on %s", w1.DevicePath)
	}

	w1.ready = true
	w1.log.Debug().Strs("devices", w1.active).Str("scale", string(w1.Scale)).Msg("wire sensor driver ready")
	return nil
}

// SetDevices discovers the slaves under DevicePath and makes the requested
// ones active. A nil or empty list activates everything found.
func (w1 *Wire) SetDevices(devices []string) error {
	if w1.DevicePath == "" {
		w1.DevicePath = wireSystemPath
	}
	discovered, err := discoverWireDevices(w1.DevicePath)
	if err != nil {
		return err
	}
	active, err := selectDevices(discovered, devices)
	if err != nil {
		return err
	}

	w1.Devices = append([]string(nil), devices...)
	w1.active = active
	return nil
}

// ActiveDevices returns a copy of the slave ids read on every sample.
func (w1 *Wire) ActiveDevices() []string {
	return append([]string(nil), w1.active...)
}

func (w1 *Wire) Endpoints() []string {
	return w1.ActiveDevices()
}

// SetDevicePath changes the sysfs root. Call SetDevices or Setup afterwards
// to rediscover the slaves.
func (w1 *Wire) SetDevicePath(devicePath string) {
	w1.DevicePath = devicePath
}

func (w1 *Wire) SetScale(symbol string) error {
	scale, err := ParseScale(symbol)
	if err != nil {
		return err
	}
	w1.Scale = scale
	return nil
}

func (w1 *Wire) SetIdleTime(idle time.Duration) error {
	if idle < 0 {
		return errors.Wrapf(ValidationError, "idle time must not be negative, got %v", idle)
	}
	w1.IdleTime.Duration = idle
	w1.idleSet = true
	return nil
}

func (w1 *Wire) Close() error {
	w1.ready = false
	return nil
}

func (w1 *Wire) IsReady() bool {
	return w1.ready
}

func (w1 *Wire) Name() string {
	return wireSensorDriverName
}

func discoverWireDevices(devicePath string) (found []string, err error) {
	entries, err := os.ReadDir(devicePath)
	if err != nil {
		err = errors.Wrapf(IOError, "error reading dir (%s): %v", devicePath, err)
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), wireBusMasterPrefix) {
			continue
		}
		// sysfs lists slaves as symlinks, Stat follows them
		info, statErr := os.Stat(filepath.Join(devicePath, entry.Name()))
		if statErr != nil || !info.IsDir() {
			continue
		}
		data, statErr := os.Stat(filepath.Join(devicePath, entry.Name(), w1SlaveFile))
		if statErr != nil || data.IsDir() {
			continue
		}
		found = append(found, entry.Name())
	}
	return
}

func selectDevices(discovered, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(discovered) == 0 {
			return nil, NoSensorError
		}
		return discovered, nil
	}

	wanted := make(map[string]bool)
	var unique []string
	for _, id := range requested {
		if !wanted[id] {
			wanted[id] = true
			unique = append(unique, id)
		}
	}

	var active []string
	matched := make(map[string]bool)
	for _, id := range discovered {
		if wanted[id] {
			active = append(active, id)
			matched[id] = true
		}
	}

	if len(active) < len(unique) {
		missing := &DevicesNotFoundError{}
		for _, id := range unique {
			if !matched[id] {
				missing.Missing = append(missing.Missing, id)
			}
		}
		return nil, maskAny(missing)
	}
	if len(active) == 0 {
		return nil, NoSensorError
	}
	return active, nil
}

func (w1 *Wire) readDevice(id string) (Reading, error) {
	filePath := filepath.Join(w1.DevicePath, id, w1SlaveFile)
	file, err := os.Open(filePath)
	if err != nil {
		return Absent(), errors.Wrapf(IOError, "failed opening %s for sensor %s: %v", filePath, id, err)
	}
	defer file.Close()

	raw, err := parseW1Slave(file)
	if err != nil {
		return Absent(), errors.Wrapf(err, "sensor %s", id)
	}
	if !raw.ready {
		w1.log.Warn().Str("device", id).Msg("sensor reported not ready")
		return Absent(), nil
	}
	reading := w1.Scale.Convert(raw.milli)
	if !reading.Valid {
		w1.log.Warn().Str("device", id).Msg("sensor reported disconnected value")
	}
	return reading, nil
}

func (w1 *Wire) sample(ctx context.Context) (Batch, error) {
	if !w1.ready {
		return nil, errors.Wrap(NotReadyError, "wire sensor driver is not set up")
	}
	batch := make(Batch, 0, len(w1.active))
	for _, id := range w1.active {
		reading, err := w1.readDevice(id)
		if err != nil {
			return nil, err
		}
		batch = append(batch, reading)
	}
	return batch, nil
}

// Get reads iterations batches back to back, without idling in between.
func (w1 *Wire) Get(ctx context.Context, iterations int) ([]Batch, error) {
	batches := make([]Batch, 0, max(iterations, 0))
	for i := 0; i < iterations; i++ {
		batch, err := w1.sample(ctx)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// Poll samples all active devices, hands the batch to handler and idles for
// IdleTime, until the budget is spent. The idle time also follows the last
// batch. An unbounded budget only ends when ctx is cancelled.
func (w1 *Wire) Poll(ctx context.Context, budget Budget, handler Handler, opts Options) error {
	if !w1.ready {
		return errors.Wrap(NotReadyError, "wire sensor driver is not set up")
	}
	loop := &pollLoop{
		driver:  wireSensorDriverName,
		log:     *w1.log,
		sample:  w1.sample,
		onState: w1.onState,
		delay: func(ctx context.Context) error {
			return w1.sleep(ctx, w1.IdleTime.Duration)
		},
	}
	return loop.run(ctx, budget, handler, opts)
}

func (w1 *Wire) PollForever(ctx context.Context, handler Handler, opts Options) error {
	return w1.Poll(ctx, Unbounded(), handler, opts)
}
