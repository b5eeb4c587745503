package greenenv

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/hubertat/greenenv/drivers"
)

// FakeGpio replaces the GPIO controller with simulated oscillators, one per
// pin, running at the given frequency.
type FakeGpio struct {
	Hz map[int]int64
}

// GreenEnv is the environment monitor: a set of sensor drivers polled until
// the context is cancelled. It is filled from the JSON configuration file.
type GreenEnv struct {
	Name string

	Thermometers *drivers.Wire
	Moisture     *drivers.GiesOMat
	Gpio         *drivers.GpIO
	FakeGpio     *FakeGpio

	LoadKernelModules bool

	sensorDrivers map[string]drivers.SensorDriver
	controller    drivers.PulseController
	stopSimulator context.CancelFunc
	log           *zerolog.Logger
}

func (ge *GreenEnv) SetLogger(log zerolog.Logger) {
	ge.log = &log
}

func (ge *GreenEnv) logger() zerolog.Logger {
	if ge.log == nil {
		return zerolog.Nop()
	}
	return *ge.log
}

func (ge *GreenEnv) initController(ctx context.Context) error {
	if ge.FakeGpio != nil {
		mock := drivers.NewMockPulseController()
		simCtx, cancel := context.WithCancel(ctx)
		ge.stopSimulator = cancel
		for pin, hz := range ge.FakeGpio.Hz {
			mock.Simulate(simCtx, pin, hz)
		}
		ge.controller = mock
		return nil
	}

	if ge.Gpio == nil {
		ge.Gpio = &drivers.GpIO{}
	}
	if err := ge.Gpio.Open(); err != nil {
		return err
	}
	ge.controller = ge.Gpio
	return nil
}

func (ge *GreenEnv) InitDrivers(ctx context.Context) error {
	ge.sensorDrivers = make(map[string]drivers.SensorDriver)

	if ge.Thermometers != nil {
		if ge.LoadKernelModules {
			if err := drivers.LoadKernelModules(ctx); err != nil {
				return err
			}
		}
		ge.sensorDrivers[ge.Thermometers.Name()] = ge.Thermometers
	}

	if ge.Moisture != nil {
		if err := ge.initController(ctx); err != nil {
			return errors.Wrap(err, "failed to init pulse controller")
		}
		ge.Moisture.SetController(ge.controller)
		ge.sensorDrivers[ge.Moisture.Name()] = ge.Moisture
	}

	if len(ge.sensorDrivers) == 0 {
		return errors.Wrap(drivers.NoSensorError, "no sensor driver configured")
	}

	for name, driver := range ge.sensorDrivers {
		driver.SetLogger(ge.logger())
		if err := driver.Setup(ctx); err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", name)
		}
	}

	return nil
}

// Run polls every driver in its own goroutine, each driver keeps a single
// owner. It returns when ctx is cancelled or a driver fails.
func (ge *GreenEnv) Run(ctx context.Context) error {
	log := ge.logger()
	handler := drivers.LogHandler(log)

	g, ctx := errgroup.WithContext(ctx)
	for name, driver := range ge.sensorDrivers {
		name, driver := name, driver
		g.Go(func() error {
			log.Info().Str("driver", name).Strs("endpoints", driver.Endpoints()).Msg("start polling")
			if err := driver.PollForever(ctx, handler, drivers.Options{"driver": name}); err != nil {
				return errors.Wrapf(err, "%s driver stopped", name)
			}
			return nil
		})
	}
	return g.Wait()
}

func (ge *GreenEnv) Close() (err error) {
	for _, driver := range ge.sensorDrivers {
		if driver != nil {
			err = multierr.Append(err, driver.Close())
		}
	}
	if ge.stopSimulator != nil {
		ge.stopSimulator()
	}
	if ge.controller != nil {
		err = multierr.Append(err, ge.controller.Close())
	}

	return
}

func (ge *GreenEnv) PrintDriverStatus(writer io.Writer) {
	names := make([]string, 0, len(ge.sensorDrivers))
	for name := range ge.sensorDrivers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== active sensor drivers ===")
	for _, name := range names {
		driver := ge.sensorDrivers[name]
		fmt.Fprintln(writer, "________")
		fmt.Fprintf(writer, "| driver: %s (ready: %v)\n", name, driver.IsReady())
		fmt.Fprintf(writer, "| endpoints: %s\n", strings.Join(driver.Endpoints(), ", "))
		fmt.Fprintln(writer, "--------")
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}
