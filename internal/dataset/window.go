package dataset

import (
	"fmt"

	"energy-forecast/internal/series"
)

// WindowedDataset is the supervised view of a series: X[i] holds the
// lookBack values immediately preceding Y[i].
type WindowedDataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of (window, target) pairs.
func (d WindowedDataset) Len() int {
	return len(d.Y)
}

// LookBack returns the window width, or 0 for an empty dataset.
func (d WindowedDataset) LookBack() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// BuildWindows slides a window of lookBack values over values with stride 1.
// Window i covers positions [i, i+lookBack) and its target is position
// i+lookBack, giving len(values) - lookBack pairs in series order.
// Windows are copies; mutating them does not touch values.
func BuildWindows(values []float64, lookBack int) (WindowedDataset, error) {
	if lookBack <= 0 {
		return WindowedDataset{}, fmt.Errorf("%w: lookBack must be positive, got %d", series.ErrInvalidInput, lookBack)
	}
	if lookBack >= len(values) {
		return WindowedDataset{}, fmt.Errorf("%w: lookBack %d must be smaller than series length %d",
			series.ErrInvalidInput, lookBack, len(values))
	}

	n := len(values) - lookBack
	ds := WindowedDataset{
		X: make([][]float64, n),
		Y: make([]float64, n),
	}

	// One backing array for all windows keeps the allocation count flat.
	backing := make([]float64, n*lookBack)
	for i := 0; i < n; i++ {
		w := backing[i*lookBack : (i+1)*lookBack : (i+1)*lookBack]
		copy(w, values[i:i+lookBack])
		ds.X[i] = w
		ds.Y[i] = values[i+lookBack]
	}

	return ds, nil
}
