package metrics

import (
	"math"
	"strconv"

	"energy-forecast/internal/forecast"
)

// MetricsWrapper adapts Metrics to the narrow interfaces declared by the
// trainer, the pipeline, the loaders and the API server.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) TrainingEpochsInc() {
	w.m.TrainingEpochs.Inc()
}

// TrainingLossSet records the last epoch's losses. A NaN validation loss
// means nothing was held out and leaves the gauge untouched.
func (w *MetricsWrapper) TrainingLossSet(train, validation float64) {
	w.m.TrainingLoss.Set(train)
	if !math.IsNaN(validation) {
		w.m.ValidationLoss.Set(validation)
	}
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) TrainingFailuresInc() {
	w.m.TrainingFailures.Inc()
}

func (w *MetricsWrapper) RolloutStepsAdd(steps float64) {
	w.m.RolloutSteps.Add(steps)
}

func (w *MetricsWrapper) RolloutNonFiniteInc() {
	w.m.RolloutNonFinite.Inc()
}

func (w *MetricsWrapper) RolloutDurationObserve(seconds float64) {
	w.m.RolloutDuration.Observe(seconds)
}

func (w *MetricsWrapper) PipelineRunsInc() {
	w.m.PipelineRuns.Inc()
}

func (w *MetricsWrapper) PipelineFailuresInc() {
	w.m.PipelineFailures.Inc()
}

// EvaluationObserve publishes the aggregates of a completed run. Gauges are
// only updated with finite values.
func (w *MetricsWrapper) EvaluationObserve(s forecast.Summary) {
	w.m.EvaluatedRecords.Add(float64(s.Evaluated))
	w.m.MissingActuals.Add(float64(s.Missing))
	setFinite(w.m.MeanDeviation, s.MeanDeviation)
	setFinite(w.m.MeanErrorPercentage, s.MeanErrorPercentage)
	setFinite(w.m.RootMeanSquaredError, s.RootMeanSquaredError)
}

func (w *MetricsWrapper) SourceLoaded(format string, points int) {
	w.m.SourceLoads.WithLabelValues(format).Inc()
	w.m.SourcePoints.WithLabelValues(format).Add(float64(points))
}

func (w *MetricsWrapper) SourceFailed(format string) {
	w.m.SourceErrors.WithLabelValues(format).Inc()
}

func (w *MetricsWrapper) CircuitBreakerRejectedInc() {
	w.m.CircuitBreakerRejected.Inc()
}

func (w *MetricsWrapper) HTTPRequestInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func setFinite(g interface{ Set(float64) }, n forecast.Number) {
	if n.IsFinite() {
		g.Set(n.Float())
	}
}
