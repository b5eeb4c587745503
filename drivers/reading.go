package drivers

import (
	"math"
	"strconv"
	"strings"
)

// Reading is a single sensor value. Valid is false when the sensor reported
// that no value is available (not ready flag or a disconnected probe).
type Reading struct {
	Value float64
	Valid bool

	count bool
}

// Value returns a valid reading holding v.
func Value(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Count returns a valid reading holding an event count, printed without
// decimals.
func Count(n int64) Reading {
	return Reading{Value: float64(n), Valid: true, count: true}
}

// Absent returns the "no value" reading.
func Absent() Reading {
	return Reading{}
}

// String renders counts as integers and values with at least one decimal
// (25 °C is "25.0").
func (r Reading) String() string {
	if !r.Valid {
		return "None"
	}
	if r.count {
		return strconv.FormatInt(int64(r.Value), 10)
	}
	s := strconv.FormatFloat(r.Value, 'f', -1, 64)
	if math.IsInf(r.Value, 0) || math.IsNaN(r.Value) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// Batch holds one reading per active endpoint, in endpoint order.
type Batch []Reading

func (b Batch) absentCount() (count int) {
	for _, r := range b {
		if !r.Valid {
			count++
		}
	}
	return
}
