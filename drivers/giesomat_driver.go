package drivers

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	giesOMatDriverName = "giesomat"

	defaultPulse      = 20
	defaultSampleRate = 5
	sampleRateUnit    = 100 * time.Millisecond
)

// GiesOMat reads Gies-O-Mat capacitive soil moisture sensors. The sensor
// output is a square wave whose frequency drops as the soil gets wetter; the
// reading is the number of edges counted during one sample window.
// A GiesOMat is owned by one caller and must not be polled concurrently.
type GiesOMat struct {
	// Pins are the GPIO pins (BCM) wired to the sensors' OUT.
	Pins []int
	// Pulse is the length of each wave phase in µs.
	Pulse int
	// SampleRate is the sample window in deciseconds.
	SampleRate int
	Edge       Edge
	// WavePins carry the charge wave, none when empty.
	WavePins []int

	controller PulseController
	counters   []pinTally
	ready      bool
	log        *zerolog.Logger
	sleep      sleepFunc

	onState func(pollState)
}

// pinTally keeps the pin a counter was registered for, Pins may change
// before the next Reset.
type pinTally struct {
	pin int
	TallyCounter
}

func NewGiesOMat(controller PulseController, pins ...int) *GiesOMat {
	return &GiesOMat{
		Pins:       pins,
		Pulse:      defaultPulse,
		SampleRate: defaultSampleRate,
		Edge:       RisingEdge,
		controller: controller,
	}
}

func (g *GiesOMat) SetController(controller PulseController) {
	g.controller = controller
}

func (g *GiesOMat) SetLogger(log zerolog.Logger) {
	l := log.With().Str("driver", giesOMatDriverName).Logger()
	g.log = &l
}

// SetPins replaces the sensor pins. The driver is not ready until Reset
// applies them.
func (g *GiesOMat) SetPins(pins ...int) error {
	if len(pins) == 0 {
		return NoSensorError
	}
	for _, pin := range pins {
		if pin < 0 || pin > 255 {
			return errors.Wrapf(ValidationError, "pin %d out of range (gpio takes uint8 pin)", pin)
		}
	}
	g.Pins = append([]int(nil), pins...)
	g.ready = false
	return nil
}

func (g *GiesOMat) SetPulse(pulse int) error {
	if pulse <= 0 {
		return errors.Wrapf(ValidationError, "pulse must be a positive number of µs, got %d", pulse)
	}
	g.Pulse = pulse
	return nil
}

func (g *GiesOMat) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return errors.Wrapf(ValidationError, "sample rate must be a positive number of deciseconds, got %d", sampleRate)
	}
	g.SampleRate = sampleRate
	return nil
}

func (g *GiesOMat) SetEdge(edge Edge) {
	g.Edge = edge
}

// Window is the time tallies accumulate before they are read.
func (g *GiesOMat) Window() time.Duration {
	return time.Duration(g.SampleRate) * sampleRateUnit
}

func (g *GiesOMat) Endpoints() []string {
	endpoints := make([]string, len(g.Pins))
	for i, pin := range g.Pins {
		endpoints[i] = strconv.Itoa(pin)
	}
	return endpoints
}

func (g *GiesOMat) Setup(ctx context.Context) error {
	if g.Pulse == 0 {
		g.Pulse = defaultPulse
	}
	if g.SampleRate == 0 {
		g.SampleRate = defaultSampleRate
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	if g.log == nil {
		nop := zerolog.Nop()
		g.log = &nop
	}
	return g.Reset(ctx)
}

// Reset applies the current configuration: pins become inputs, the wave is
// started and a fresh tally counter is registered for every pin.
func (g *GiesOMat) Reset(ctx context.Context) error {
	if g.controller == nil {
		return errors.Wrap(ConfigurationError, "giesomat driver has no pulse controller")
	}
	if err := g.SetPins(g.Pins...); err != nil {
		return errors.Wrap(err, "failed to init giesomat driver")
	}
	if err := g.SetPulse(g.Pulse); err != nil {
		return errors.Wrap(err, "failed to init giesomat driver")
	}
	if err := g.SetSampleRate(g.SampleRate); err != nil {
		return errors.Wrap(err, "failed to init giesomat driver")
	}
	if err := g.closeCounters(); err != nil {
		return errors.Wrap(err, "failed to release previous tally counters")
	}
	g.ready = false

	for _, pin := range g.Pins {
		if err := g.controller.SetMode(pin, PinInput); err != nil {
			return errors.Wrapf(err, "failed to set pin %d as input", pin)
		}
	}
	if len(g.WavePins) > 0 {
		pulse := time.Duration(g.Pulse) * time.Microsecond
		if err := g.controller.StartWave(g.WavePins, pulse); err != nil {
			return errors.Wrapf(err, "failed to start wave on pins %v", g.WavePins)
		}
	}
	for _, pin := range g.Pins {
		counter, err := g.controller.WatchEdges(pin, g.Edge)
		if err != nil {
			return multierr.Append(errors.Wrapf(err, "failed to watch pin %d", pin), g.closeCounters())
		}
		g.counters = append(g.counters, pinTally{pin: pin, TallyCounter: counter})
	}
	g.resetTallies()

	g.ready = true
	g.log.Debug().Ints("pins", g.Pins).Dur("window", g.Window()).Str("edge", g.Edge.String()).Msg("giesomat driver ready")
	return nil
}

func (g *GiesOMat) closeCounters() (err error) {
	for _, counter := range g.counters {
		err = multierr.Append(err, counter.Close())
	}
	g.counters = nil
	return
}

func (g *GiesOMat) Close() error {
	g.ready = false
	return g.closeCounters()
}

func (g *GiesOMat) IsReady() bool {
	return g.ready
}

func (g *GiesOMat) Name() string {
	return giesOMatDriverName
}

func (g *GiesOMat) resetTallies() {
	for _, counter := range g.counters {
		counter.ResetTally()
	}
}

func (g *GiesOMat) readTallies(ctx context.Context) (Batch, error) {
	batch := make(Batch, len(g.counters))
	for i, counter := range g.counters {
		tally := counter.Tally()
		lastTallyGauge.WithLabelValues(strconv.Itoa(counter.pin)).Set(float64(tally))
		batch[i] = Count(tally)
	}
	return batch, nil
}

// nextWindow clears the tallies and lets one window elapse.
func (g *GiesOMat) nextWindow(ctx context.Context) error {
	g.resetTallies()
	return g.sleep(ctx, g.Window())
}

// Get waits one window, then collects iterations batches, each one window apart.
func (g *GiesOMat) Get(ctx context.Context, iterations int) ([]Batch, error) {
	if !g.ready {
		return nil, errors.Wrap(NotReadyError, "giesomat driver is not set up")
	}
	if err := g.nextWindow(ctx); err != nil {
		return nil, err
	}
	batches := make([]Batch, 0, max(iterations, 0))
	for i := 0; i < iterations; i++ {
		batch, err := g.readTallies(ctx)
		if err != nil {
			return nil, err
		}
		if err := g.nextWindow(ctx); err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// Poll waits one window before the first read, then reads the tallies,
// hands them to handler and starts the next window until the budget is
// spent. An unbounded budget only ends when ctx is cancelled.
func (g *GiesOMat) Poll(ctx context.Context, budget Budget, handler Handler, opts Options) error {
	if !g.ready {
		return errors.Wrap(NotReadyError, "giesomat driver is not set up")
	}
	if err := g.nextWindow(ctx); err != nil {
		return err
	}
	loop := &pollLoop{
		driver:  giesOMatDriverName,
		log:     *g.log,
		sample:  g.readTallies,
		delay:   g.nextWindow,
		onState: g.onState,
	}
	return loop.run(ctx, budget, handler, opts)
}

func (g *GiesOMat) PollForever(ctx context.Context, handler Handler, opts Options) error {
	return g.Poll(ctx, Unbounded(), handler, opts)
}
