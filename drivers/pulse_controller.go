package drivers

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type PinMode int

const (
	PinInput PinMode = iota
	PinOutput
)

func (m PinMode) String() string {
	if m == PinOutput {
		return "output"
	}
	return "input"
}

// Edge selects which level transitions a tally counts.
type Edge int

const (
	RisingEdge Edge = iota
	FallingEdge
	EitherEdge
)

func (e Edge) String() string {
	switch e {
	case FallingEdge:
		return "falling"
	case EitherEdge:
		return "either"
	}
	return "rising"
}

func ParseEdge(name string) (Edge, error) {
	switch strings.ToLower(name) {
	case "", "rising":
		return RisingEdge, nil
	case "falling":
		return FallingEdge, nil
	case "either", "both":
		return EitherEdge, nil
	}
	return RisingEdge, errors.Wrapf(ValidationError, "unknown edge '%s', needs to be rising, falling or either", name)
}

func (e Edge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Edge) UnmarshalText(text []byte) (err error) {
	*e, err = ParseEdge(string(text))
	return
}

func (e Edge) counts(rising bool) bool {
	switch e {
	case RisingEdge:
		return rising
	case FallingEdge:
		return !rising
	}
	return true
}

// clockPins are the BCM pins with a general purpose clock function.
var clockPins = map[int]bool{4: true, 5: true, 6: true, 20: true, 21: true}

func checkClockPin(pin int) error {
	if !clockPins[pin] {
		return errors.Wrapf(ValidationError, "pin %d cannot carry a clock wave, use one of 4, 5, 6, 20, 21", pin)
	}
	return nil
}

// PulseController is the GPIO capability set the moisture reader needs.
type PulseController interface {
	SetMode(pin int, mode PinMode) error
	// StartWave emits a repeating high/low square wave, each phase lasting pulse.
	StartWave(pins []int, pulse time.Duration) error
	WatchEdges(pin int, edge Edge) (TallyCounter, error)
	Close() error
}

// TallyCounter counts edges on one pin.
type TallyCounter interface {
	Tally() int64
	ResetTally()
	Close() error
}
