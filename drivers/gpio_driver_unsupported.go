//go:build !linux

package drivers

import (
	"time"

	"github.com/pkg/errors"
)

const gpioDriverName = "gpio"

var errGpioUnsupported = errors.New("gpio pulse counting is only supported on linux")

// GpIO is only implemented on linux. Use MockPulseController elsewhere.
type GpIO struct {
	ChipPath string
	PullUp   bool
}

func (gp *GpIO) Open() error {
	return errGpioUnsupported
}

func (gp *GpIO) SetMode(pin int, mode PinMode) error {
	return errGpioUnsupported
}

func (gp *GpIO) StartWave(pins []int, pulse time.Duration) error {
	return errGpioUnsupported
}

func (gp *GpIO) WatchEdges(pin int, edge Edge) (TallyCounter, error) {
	return nil, errGpioUnsupported
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return false
}

func (gp *GpIO) Close() error {
	return nil
}
