// Package metrics provides Prometheus metrics for the forecaster.
// It covers model training, the autoregressive rollout, evaluation against
// actual readings, data loading and the HTTP API, all exposed through the
// Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	// Pipeline metrics
	PipelineRuns     prometheus.Counter // Total number of forecast runs started
	PipelineFailures prometheus.Counter // Total number of forecast runs that failed

	// Training metrics
	TrainingEpochs   prometheus.Counter   // Total number of epochs trained
	TrainingLoss     prometheus.Gauge     // Training loss of the last epoch
	ValidationLoss   prometheus.Gauge     // Validation loss of the last epoch
	TrainingDuration prometheus.Histogram // Wall time of training calls
	TrainingFailures prometheus.Counter   // Total number of failed training calls

	// Rollout and evaluation metrics
	RolloutSteps         prometheus.Counter   // Total number of forecast steps produced
	RolloutNonFinite     prometheus.Counter   // Total number of non-finite forecast values
	RolloutDuration      prometheus.Histogram // Wall time of rollouts
	EvaluatedRecords     prometheus.Counter   // Records that contributed to evaluation statistics
	MissingActuals       prometheus.Counter   // Forecast steps without an actual reading
	MeanDeviation        prometheus.Gauge     // Mean absolute deviation of the last run
	MeanErrorPercentage  prometheus.Gauge     // Mean error percentage of the last run
	RootMeanSquaredError prometheus.Gauge     // RMSE of the last run

	// Data source metrics, labelled by format
	SourceLoads            *prometheus.CounterVec
	SourceErrors           *prometheus.CounterVec
	SourcePoints           *prometheus.CounterVec
	CircuitBreakerRejected prometheus.Counter // Remote loads rejected by an open breaker

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PipelineRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "forecast_runs_total",
			Help: "Total number of forecast runs started",
		}),
		PipelineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "forecast_run_failures_total",
			Help: "Total number of forecast runs that failed",
		}),
		TrainingEpochs: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_epochs_total",
			Help: "Total number of training epochs completed",
		}),
		TrainingLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_loss",
			Help: "Mean squared error on training rows after the last epoch",
		}),
		ValidationLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "validation_loss",
			Help: "Mean squared error on validation rows after the last epoch",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of model training in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of training calls that failed",
		}),
		RolloutSteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollout_steps_total",
			Help: "Total number of forecast steps produced",
		}),
		RolloutNonFinite: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollout_non_finite_total",
			Help: "Total number of NaN or infinite forecast values",
		}),
		RolloutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollout_duration_seconds",
			Help:    "Duration of autoregressive rollouts in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EvaluatedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "evaluated_records_total",
			Help: "Total number of records that contributed to evaluation statistics",
		}),
		MissingActuals: factory.NewCounter(prometheus.CounterOpts{
			Name: "missing_actuals_total",
			Help: "Total number of forecast steps without an actual reading",
		}),
		MeanDeviation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_mean_deviation",
			Help: "Mean absolute deviation of the last completed run",
		}),
		MeanErrorPercentage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_mean_error_percentage",
			Help: "Mean error percentage of the last completed run",
		}),
		RootMeanSquaredError: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_rmse",
			Help: "Root mean squared error of the last completed run",
		}),
		SourceLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "source_loads_total",
			Help: "Total number of series loads by source format",
		}, []string{"format"}),
		SourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "source_errors_total",
			Help: "Total number of failed series loads by source format",
		}, []string{"format"}),
		SourcePoints: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "source_points_total",
			Help: "Total number of points loaded by source format",
		}, []string{"format"}),
		CircuitBreakerRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "circuit_breaker_rejected_total",
			Help: "Total number of remote loads rejected by an open circuit breaker",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
	}
}
