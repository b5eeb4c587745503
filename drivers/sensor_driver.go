package drivers

import (
	"context"

	"github.com/rs/zerolog"
)

// SensorDriver is a polled sensor reader. Implementations are owned by a
// single caller and are not safe for concurrent use.
type SensorDriver interface {
	Setup(ctx context.Context) error
	Close() error
	IsReady() bool
	Name() string
	SetLogger(log zerolog.Logger)
	Endpoints() []string
	Get(ctx context.Context, iterations int) ([]Batch, error)
	Poll(ctx context.Context, budget Budget, handler Handler, opts Options) error
	PollForever(ctx context.Context, handler Handler, opts Options) error
}

func MapAllSensorDrivers() map[string]SensorDriver {
	drivers := []SensorDriver{
		&Wire{},
		&GiesOMat{},
	}

	mapped := make(map[string]SensorDriver)
	for _, driver := range drivers {
		mapped[driver.Name()] = driver
	}
	return mapped
}
