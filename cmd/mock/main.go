package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hubertat/greenenv"
	"github.com/hubertat/greenenv/drivers"
)

var (
	Version string
	Build   string
)

var fakeProbes = map[string]string{
	"28-00000a1b2c3d": "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n",
	"28-00000d4e5f60": "50 05 4b 46 7f ff 0c 10 1c : crc=1c YES\n50 05 4b 46 7f ff 0c 10 1c t=85000\n",
}

func main() {
	var runFor time.Duration
	pflag.DurationVar(&runFor, "run-for", 10*time.Second, "How long the mock runs, 0 runs until interrupted")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	logger.Info().Str("version", Version).Msg("greenenv mock started, runs without sensors attached")

	dir, err := os.MkdirTemp("", "greenenv-w1")
	if err != nil {
		Exitf("Failed to create fake sysfs: %v\n", err)
	}
	defer os.RemoveAll(dir)
	if err := writeFakeSysfs(dir); err != nil {
		Exitf("Failed to create fake sysfs: %v\n", err)
	}

	ge := &greenenv.GreenEnv{
		Name: "mock",
		Thermometers: &drivers.Wire{
			DevicePath: dir,
			Scale:      drivers.Celsius,
			IdleTime:   drivers.Duration{Duration: time.Second},
		},
		Moisture: &drivers.GiesOMat{
			Pins:       []int{17, 27},
			SampleRate: 5,
		},
		FakeGpio: &greenenv.FakeGpio{
			Hz: map[int]int64{17: 1200, 27: 800},
		},
	}
	ge.SetLogger(logger)

	var ctx context.Context
	var cancel context.CancelFunc
	if runFor > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), runFor)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if err := ge.InitDrivers(ctx); err != nil {
		ge.Close()
		Exitf("Failed to init drivers: %v\n", err)
	}
	ge.PrintDriverStatus(os.Stdout)

	err = ge.Run(ctx)
	cancel()
	ge.Close()
	if err != nil && !isStop(err) {
		Exitf("Run failed: %v\n", err)
	}
}

func isStop(err error) bool {
	cause := errors.Cause(err)
	return cause == context.Canceled || cause == context.DeadlineExceeded
}

func writeFakeSysfs(dir string) error {
	if err := os.Mkdir(filepath.Join(dir, "w1_bus_master1"), 0o755); err != nil {
		return err
	}
	for id, content := range fakeProbes {
		if err := os.Mkdir(filepath.Join(dir, id), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, id, "w1_slave"), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
