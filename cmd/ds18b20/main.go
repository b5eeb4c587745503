package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hubertat/greenenv/drivers"
)

var (
	Version string
	Build   string
)

func main() {
	var levelFlag string
	var devices []string
	var idleSeconds float64
	var scale string
	var iterations int
	var devicePath string
	var loadModules bool

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringSliceVarP(&devices, "devices", "d", nil, "The 1-wire devices that should be used to measure temperature (all found when empty)")
	pflag.Float64VarP(&idleSeconds, "idle", "t", 2, "Idle time in seconds between two measurements")
	pflag.StringVarP(&scale, "scale", "c", "C", "The temperature scale to use (K,F,C)")
	pflag.IntVarP(&iterations, "iterations", "i", 10, "Number of measurements; use -1 for infinity")
	pflag.StringVar(&devicePath, "device-path", "/sys/bus/w1/devices", "Where 1-wire devices are listed")
	pflag.BoolVar(&loadModules, "load-modules", false, "Load w1-gpio and w1-therm kernel modules first")
	pflag.Parse()

	logger := newLogger(levelFlag)
	logger.Debug().Str("version", Version).Str("build", Build).Msg("ds18b20 started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if loadModules {
		if err := drivers.LoadKernelModules(ctx); err != nil {
			Exitf("Failed to load kernel modules: %v\n", err)
		}
	}

	w1 := &drivers.Wire{
		DevicePath: devicePath,
		Devices:    devices,
	}
	w1.SetLogger(logger)
	if err := w1.SetScale(scale); err != nil {
		Exitf("%v\n", err)
	}
	if err := w1.SetIdleTime(time.Duration(idleSeconds * float64(time.Second))); err != nil {
		Exitf("%v\n", err)
	}
	if err := w1.Setup(ctx); err != nil {
		if missing, ok := drivers.IsDevicesNotFound(err); ok {
			Exitf("Provided devices %v cannot be found! Aborting.\n", missing)
		}
		Exitf("Failed to initialize DS18B20 reader: %v\n", err)
	}
	defer w1.Close()

	err := w1.Poll(ctx, drivers.BudgetFromInt(iterations), drivers.PrintHandler(os.Stdout), nil)
	if err != nil && errors.Cause(err) != context.Canceled {
		Exitf("Polling failed: %v\n", err)
	}
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
