package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/hubertat/greenenv/drivers"
)

var (
	Version string
	Build   string
)

type readerConfig struct {
	pins       []int
	wavePins   []int
	pulse      int
	sampleRate int
	iterations int
	edge       drivers.Edge
}

func main() {
	var levelFlag string
	var cfg readerConfig
	var edge string
	var mock bool
	var mockHz int64

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.IntSliceVarP(&cfg.pins, "gpio", "g", nil, "GPIO pin number(s), where the OUT sensor(s) pin is/are attached to")
	pflag.IntVarP(&cfg.pulse, "pulse", "p", 20, "Set pulse to P µs")
	pflag.IntVarP(&cfg.sampleRate, "sample-rate", "s", 5, "Set sample rate to S deciseconds [10^-1 s]")
	pflag.IntVarP(&cfg.iterations, "iterations", "i", 10, "Number of iterations to get a value; use -1 for infinity")
	pflag.IntSliceVar(&cfg.wavePins, "wave", nil, "GPIO pin(s) carrying the charge wave (clock capable pins only)")
	pflag.StringVar(&edge, "edge", "rising", "Edges to count (rising|falling|either)")
	pflag.BoolVar(&mock, "mock", false, "Use a simulated oscillator instead of the GPIO controller")
	pflag.Int64Var(&mockHz, "mock-hz", 1000, "Frequency of the simulated oscillator")
	pflag.Parse()

	logger := newLogger(levelFlag)
	logger.Debug().Str("version", Version).Str("build", Build).Msg("giesomat started")

	if len(cfg.pins) == 0 {
		Exitf("At least one GPIO pin is required (-g)\n")
	}
	var err error
	cfg.edge, err = drivers.ParseEdge(edge)
	if err != nil {
		Exitf("%v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	var controller drivers.PulseController
	if mock {
		mc := drivers.NewMockPulseController()
		for _, pin := range cfg.pins {
			mc.Simulate(ctx, pin, mockHz)
		}
		controller = mc
	} else {
		gp := &drivers.GpIO{}
		if err := gp.Open(); err != nil {
			Exitf("Failed to open GPIO: %v\n", err)
		}
		controller = gp
	}

	err = runReader(ctx, cancel, controller, cfg, os.Stdout, logger)
	if err != nil && errors.Cause(err) != context.Canceled {
		Exitf("%v\n", err)
	}
}

// runReader sets up the sensor on controller and polls it. It always stops
// the simulations (cancel) and closes the controller before returning.
func runReader(ctx context.Context, cancel context.CancelFunc, controller drivers.PulseController, cfg readerConfig, out io.Writer, logger zerolog.Logger) (err error) {
	defer func() {
		cancel()
		err = multierr.Append(err, errors.Wrap(controller.Close(), "closing controller"))
	}()

	sensor := drivers.NewGiesOMat(controller, cfg.pins...)
	sensor.WavePins = cfg.wavePins
	sensor.SetEdge(cfg.edge)
	sensor.SetLogger(logger)
	if err := sensor.SetPulse(cfg.pulse); err != nil {
		return err
	}
	if err := sensor.SetSampleRate(cfg.sampleRate); err != nil {
		return err
	}
	if err := sensor.Setup(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize Gies-O-Mat reader")
	}
	defer func() {
		err = multierr.Append(err, errors.Wrap(sensor.Close(), "closing sensor"))
	}()

	if err := sensor.Poll(ctx, drivers.BudgetFromInt(cfg.iterations), drivers.PrintHandler(out), nil); err != nil {
		return errors.Wrap(err, "polling failed")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		logger.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
