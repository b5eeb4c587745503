package drivers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ConfigurationError = errors.New("invalid configuration")
	IsConfiguration    = isErrorFunc(ConfigurationError)
	ValidationError    = errors.New("validation failed")
	IsValidation       = isErrorFunc(ValidationError)
	IOError            = errors.New("i/o failure")
	IsIO               = isErrorFunc(IOError)
	ParseError         = errors.New("malformed raw reading")
	IsParse            = isErrorFunc(ParseError)
	NotReadyError      = errors.New("driver not ready")
	IsNotReady         = isErrorFunc(NotReadyError)

	NoSensorError = errors.Wrap(ConfigurationError, "no sensor found")
	IsNoSensor    = isErrorFunc(NoSensorError)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		for err != nil {
			if err == typeOfError {
				return true
			}
			cause, ok := err.(interface{ Cause() error })
			if !ok {
				return false
			}
			err = cause.Cause()
		}
		return false
	}
}

// DevicesNotFoundError is returned when requested devices are missing from
// the discovered set.
type DevicesNotFoundError struct {
	Missing []string
}

func (e *DevicesNotFoundError) Error() string {
	return fmt.Sprintf("provided devices [%s] cannot be found", strings.Join(e.Missing, ", "))
}

// Cause makes the error a ConfigurationError for errors.Cause based checks.
func (e *DevicesNotFoundError) Cause() error {
	return ConfigurationError
}

// IsDevicesNotFound returns the missing device list when err was caused by
// a DevicesNotFoundError.
func IsDevicesNotFound(err error) ([]string, bool) {
	for err != nil {
		if dnf, ok := err.(*DevicesNotFoundError); ok {
			return dnf.Missing, true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return nil, false
		}
		err = cause.Cause()
	}
	return nil, false
}
