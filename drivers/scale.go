package drivers

import (
	"github.com/pkg/errors"
)

// Scale is a temperature scale symbol.
type Scale string

const (
	Celsius    Scale = "C"
	Fahrenheit Scale = "F"
	Kelvin     Scale = "K"
)

// disconnectedMilli is what the kernel reports for a probe that dropped off
// the bus mid conversion.
const disconnectedMilli = -1

// ParseScale validates a scale symbol.
func ParseScale(symbol string) (Scale, error) {
	switch s := Scale(symbol); s {
	case Celsius, Fahrenheit, Kelvin:
		return s, nil
	}
	return "", errors.Wrapf(ConfigurationError, "unknown scale type '%s', needs to be K, F or C", symbol)
}

// Convert turns a millidegree Celsius raw value into a reading in scale s.
func (s Scale) Convert(milli int64) Reading {
	if milli == disconnectedMilli {
		return Absent()
	}
	celsius := float64(milli) / 1000
	switch s {
	case Kelvin:
		return Value(celsius + 273.15)
	case Fahrenheit:
		// explicit conversion keeps the product rounded before the add
		return Value(float64(celsius*(9.0/5.0)) + 32)
	default:
		return Value(celsius)
	}
}
