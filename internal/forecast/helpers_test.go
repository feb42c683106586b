package forecast

import (
	"context"
	"sync"
	"time"

	"energy-forecast/internal/ml"
	"energy-forecast/internal/series"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	steps       float64
	nonFinite   int
	runs        int
	failures    int
	evaluations []Summary
}

func (m *MockMetrics) RolloutStepsAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps += v
}

func (m *MockMetrics) RolloutNonFiniteInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonFinite++
}

func (m *MockMetrics) RolloutDurationObserve(float64) {}

func (m *MockMetrics) PipelineRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *MockMetrics) PipelineFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) EvaluationObserve(s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, s)
}

// recordingModel returns queued predictions in order and keeps a copy of
// every window it was asked about.
type recordingModel struct {
	lookBack int
	outputs  []float64
	windows  [][]float64
}

func (m *recordingModel) Predict(window []float64) float64 {
	w := make([]float64, len(window))
	copy(w, window)
	m.windows = append(m.windows, w)

	v := m.outputs[0]
	if len(m.outputs) > 1 {
		m.outputs = m.outputs[1:]
	}
	return v
}

func (m *recordingModel) LookBack() int { return m.lookBack }

// meanModel predicts the window average.
type meanModel struct{ lookBack int }

func (m meanModel) Predict(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

func (m meanModel) LookBack() int { return m.lookBack }

// stubTrainer returns a fixed model, or a fixed error.
type stubTrainer struct {
	model ml.Model
	err   error
	calls int
	lastX [][]float64
	lastY []float64
}

func (s *stubTrainer) Train(_ context.Context, X [][]float64, y []float64, _ ml.TrainConfig) (ml.Model, ml.TrainReport, error) {
	s.calls++
	s.lastX, s.lastY = X, y
	if s.err != nil {
		return nil, ml.TrainReport{}, s.err
	}
	return s.model, ml.TrainReport{TrainingSamples: len(X), EpochsRun: 1}, nil
}

func stamped(start time.Time, interval time.Duration, values ...float64) []series.Point {
	points := make([]series.Point, len(values))
	for i, v := range values {
		points[i] = series.Point{Timestamp: start.Add(time.Duration(i) * interval), Value: v}
	}
	return points
}

func unstamped(values ...float64) []series.Point {
	points := make([]series.Point, len(values))
	for i, v := range values {
		points[i] = series.Point{Value: v}
	}
	return points
}
