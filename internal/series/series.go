// Package series defines the time series representation shared by the
// loaders, the forecasting pipeline and the storage layer.
//
// A series is an ordered slice of points. The pipeline treats points as
// equally spaced by index; timestamps are only consulted when aligning a
// forecast against actual readings.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks input that cannot be forecast: an empty series,
// non-finite values or timestamps out of order.
var ErrInvalidInput = errors.New("invalid input")

// Point is a single reading.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Values returns the reading values in series order.
func Values(points []Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// HasTimestamps reports whether every point carries a timestamp.
func HasTimestamps(points []Point) bool {
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		if p.Timestamp.IsZero() {
			return false
		}
	}
	return true
}

// Validate checks that the series is non-empty, that every value is finite
// and that timestamps, when present, are strictly increasing.
func Validate(points []Point) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidInput)
	}

	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("%w: non-finite value %v at index %d", ErrInvalidInput, p.Value, i)
		}
	}

	if !HasTimestamps(points) {
		return nil
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamp %s at index %d is not after %s",
				ErrInvalidInput,
				points[i].Timestamp.Format(time.RFC3339),
				i,
				points[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Last returns the final point of the series, or the zero point when empty.
func Last(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	return points[len(points)-1]
}
