package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu             sync.Mutex
	epochs         int
	failures       int
	durationSum    float64
	lastTrain      float64
	lastValidation float64
}

func (m *MockMetrics) TrainingEpochsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func (m *MockMetrics) TrainingLossSet(train, validation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTrain = train
	m.lastValidation = validation
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durationSum += v
}

func (m *MockMetrics) TrainingFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// Epochs returns the number of recorded epochs.
func (m *MockMetrics) Epochs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs
}

// Failures returns the number of recorded training failures.
func (m *MockMetrics) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// ConstantModel predicts the same value for every window. It is used by tests
// of the forecasting stages that only need a deterministic model.
type ConstantModel struct {
	Value  float64
	Window int
}

func (m ConstantModel) Predict([]float64) float64 { return m.Value }

func (m ConstantModel) LookBack() int { return m.Window }
