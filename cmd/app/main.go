package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hubertat/servicemaker"
	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hubertat/greenenv"
)

var (
	Version string
	Build   string

	geService = servicemaker.ServiceMaker{
		User:               "greenenv",
		UserGroups:         []string{"gpio"},
		ServicePath:        "/etc/systemd/system/greenenv.service",
		ServiceDescription: "GreenEnv service: DS18B20 temperature and Gies-O-Mat soil moisture monitor. github.com/hubertat/greenenv",
		ExecDir:            "/srv/greenenv",
		ExecName:           "greenenv",
	}
)

func main() {
	var levelFlag string
	var configPath string
	var install bool

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVar(&configPath, "config", "config.json", "path of the configuration file")
	pflag.BoolVar(&install, "install", false, "Install service in os")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(lvl)
	}
	logger.Info().Str("version", Version).Str("build", Build).Msg("greenenv started")

	if install {
		if err := geService.InstallService(); err != nil {
			Exitf("Failed to install service: %v\n", err)
		}
		logger.Info().Msg("service installed!")
		return
	}

	ge, err := loadConfig(configPath)
	if err != nil {
		Exitf("Failed to load config: %v\n", err)
	}
	ge.SetLogger(logger)

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	logger.Info().Msg("will init greenenv drivers...")
	if err := ge.InitDrivers(ctx); err != nil {
		ge.Close()
		Exitf("Failed to init drivers: %v\n", err)
	}
	ge.PrintDriverStatus(os.Stdout)

	err = ge.Run(ctx)
	cancel()
	if closeErr := ge.Close(); closeErr != nil {
		logger.Warn().Err(closeErr).Msg("closing drivers")
	}
	if err != nil && errors.Cause(err) != context.Canceled {
		Exitf("Run failed: %v\n", err)
	}
}

func loadConfig(path string) (*greenenv.GreenEnv, error) {
	configFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't find/open config file (%s)", path)
	}
	defer configFile.Close()

	cBuff, err := io.ReadAll(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading config file")
	}

	ge := &greenenv.GreenEnv{}
	if err := json.Unmarshal(cBuff, ge); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling json config")
	}
	return ge, nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
