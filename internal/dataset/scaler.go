// Package dataset turns a raw series into model-ready training data:
// min-max scaling and fixed-size look-back windows.
package dataset

import (
	"fmt"

	"energy-forecast/internal/series"

	"gonum.org/v1/gonum/floats"
)

// ScalingParams holds the bounds of a training series. It is computed once
// per run and used for both directions of the transform.
type ScalingParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports whether the series was constant, in which case the
// range is zero and the transform cannot divide by it.
func (p ScalingParams) Degenerate() bool {
	return p.Max == p.Min
}

// Range returns max - min.
func (p ScalingParams) Range() float64 {
	return p.Max - p.Min
}

// FitScaler computes the scaling bounds of values.
func FitScaler(values []float64) (ScalingParams, error) {
	if len(values) == 0 {
		return ScalingParams{}, fmt.Errorf("%w: cannot fit scaler on empty series", series.ErrInvalidInput)
	}
	return ScalingParams{
		Min: floats.Min(values),
		Max: floats.Max(values),
	}, nil
}

// Normalize maps each value to (v - min) / (max - min). A degenerate
// range maps every value to 0.
func Normalize(values []float64, p ScalingParams) []float64 {
	out := make([]float64, len(values))
	if p.Degenerate() {
		return out
	}

	span := p.Range()
	for i, v := range values {
		out[i] = (v - p.Min) / span
	}
	return out
}

// Denormalize is the inverse of Normalize: v * (max - min) + min. With a
// degenerate range the scaling step is skipped and values are offset by min.
func Denormalize(values []float64, p ScalingParams) []float64 {
	out := make([]float64, len(values))
	if p.Degenerate() {
		for i, v := range values {
			out[i] = v + p.Min
		}
		return out
	}

	span := p.Range()
	for i, v := range values {
		out[i] = v*span + p.Min
	}
	return out
}
