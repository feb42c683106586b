package forecast

import (
	"context"
	"fmt"
	"time"

	"energy-forecast/internal/dataset"
	"energy-forecast/internal/ml"
	"energy-forecast/internal/series"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Config is the run configuration owned by the pipeline.
type Config struct {
	LookBack int
	Steps    int
	Interval time.Duration

	// Start is the timestamp of the first forecast step. When zero it is the
	// last training timestamp plus Interval, or the run start truncated to
	// Interval when the training series carries no timestamps.
	Start time.Time

	Train        ml.TrainConfig
	Alignment    AlignmentPolicy
	FillMissing  bool
	MissingValue float64
}

// Validate checks the parts of the configuration that do not depend on the
// input series.
func (c Config) Validate() error {
	if c.LookBack <= 0 {
		return fmt.Errorf("%w: lookBack must be positive, got %d", series.ErrInvalidInput, c.LookBack)
	}
	if c.Steps < 0 {
		return fmt.Errorf("%w: steps cannot be negative, got %d", series.ErrInvalidInput, c.Steps)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", series.ErrInvalidInput, c.Interval)
	}
	if _, err := ParseAlignmentPolicy(string(c.Alignment)); err != nil {
		return fmt.Errorf("%w: %w", series.ErrInvalidInput, err)
	}
	return nil
}

// RunSettings records the effective settings of a run.
type RunSettings struct {
	LookBack        int             `json:"look_back"`
	Steps           int             `json:"steps"`
	IntervalMinutes float64         `json:"interval_minutes"`
	ForecastStart   time.Time       `json:"forecast_start"`
	Alignment       AlignmentPolicy `json:"alignment"`
	Train           ml.TrainConfig  `json:"train"`
}

// Result is the outcome of a completed run. It only exists once every stage,
// evaluation included, has finished.
type Result struct {
	RunID           string                `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      time.Time             `json:"finished_at"`
	Settings        RunSettings           `json:"settings"`
	TrainingPoints  int                   `json:"training_points"`
	ActualPoints    int                   `json:"actual_points"`
	Scaling         dataset.ScalingParams `json:"scaling"`
	DegenerateScale bool                  `json:"degenerate_scale"`
	Training        ml.TrainReport        `json:"training"`
	Rollout         RolloutStats          `json:"rollout"`
	Summary         Summary               `json:"summary"`
	Records         []ResultRecord        `json:"records"`
}

// Pipeline runs the forecasting stages end to end: normalize, window,
// train, roll out, denormalize and evaluate. Every run gets its own scaling
// parameters and model.
type Pipeline struct {
	cfg     Config
	trainer ml.Trainer
	metrics MetricsInterface
	now     func() time.Time
}

// NewPipeline creates a pipeline. metrics may be nil.
func NewPipeline(cfg Config, trainer ml.Trainer, metrics MetricsInterface) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		trainer: trainer,
		metrics: metrics,
		now:     time.Now,
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run forecasts cfg.Steps values after training and compares them with
// actual. actual may be empty, in which case every record lacks an actual
// value. On error no result is returned.
func (p *Pipeline) Run(ctx context.Context, training, actual []series.Point) (*Result, error) {
	if p.metrics != nil {
		p.metrics.PipelineRunsInc()
	}

	result, err := p.run(ctx, training, actual)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PipelineFailuresInc()
		}
		log.Error().Err(err).Msg("Forecast run failed")
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.EvaluationObserve(result.Summary)
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, training, actual []series.Point) (*Result, error) {
	cfg := p.cfg
	startedAt := p.now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(training); err != nil {
		return nil, fmt.Errorf("training series: %w", err)
	}
	if len(actual) > 0 {
		if err := series.Validate(actual); err != nil {
			return nil, fmt.Errorf("actual series: %w", err)
		}
	}
	if cfg.LookBack >= len(training) {
		return nil, fmt.Errorf("%w: lookBack %d must be smaller than training length %d",
			series.ErrInvalidInput, cfg.LookBack, len(training))
	}

	forecastStart := p.forecastStart(training, startedAt)
	if cfg.Alignment == AlignTimestamp && !series.HasTimestamps(actual) && len(actual) > 0 {
		logger.Warn().Msg("Timestamp alignment requested but actual series has no timestamps")
	}

	logger.Info().
		Int("training_points", len(training)).
		Int("actual_points", len(actual)).
		Int("look_back", cfg.LookBack).
		Int("steps", cfg.Steps).
		Time("forecast_start", forecastStart).
		Str("alignment", string(cfg.Alignment)).
		Msg("Starting forecast run")

	values := series.Values(training)
	params, err := dataset.FitScaler(values)
	if err != nil {
		return nil, err
	}
	if params.Degenerate() {
		logger.Warn().
			Float64("value", params.Min).
			Msg("Training series is constant, normalizing to zero")
	}
	normalized := dataset.Normalize(values, params)

	ds, err := dataset.BuildWindows(normalized, cfg.LookBack)
	if err != nil {
		return nil, err
	}

	logger.Info().Int("samples", ds.Len()).Msg("Training the model")
	model, report, err := p.trainer.Train(ctx, ds.X, ds.Y, cfg.Train)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	logger.Info().Msg("Forecasting")
	seed := normalized[len(normalized)-cfg.LookBack:]
	engine := NewEngine(cfg.LookBack, p.metrics)
	rollout, stats, err := engine.Rollout(ctx, model, seed, cfg.Steps)
	if err != nil {
		return nil, fmt.Errorf("rollout: %w", err)
	}

	predictions := dataset.Denormalize(rollout, params)
	records, summary := Compare(predictions, actual, CompareOptions{
		Policy:       cfg.Alignment,
		Start:        forecastStart,
		Interval:     cfg.Interval,
		FillMissing:  cfg.FillMissing,
		MissingValue: cfg.MissingValue,
	})

	finishedAt := p.now()
	logger.Info().
		Int("records", summary.Records).
		Int("matched", summary.Matched).
		Int("missing", summary.Missing).
		Int("non_finite", summary.NonFinitePredictions).
		Stringer("mean_deviation", summary.MeanDeviation).
		Dur("elapsed", finishedAt.Sub(startedAt)).
		Msg("Forecast run complete")

	return &Result{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Settings: RunSettings{
			LookBack:        cfg.LookBack,
			Steps:           cfg.Steps,
			IntervalMinutes: cfg.Interval.Minutes(),
			ForecastStart:   forecastStart,
			Alignment:       cfg.Alignment,
			Train:           cfg.Train,
		},
		TrainingPoints:  len(training),
		ActualPoints:    len(actual),
		Scaling:         params,
		DegenerateScale: params.Degenerate(),
		Training:        report,
		Rollout:         stats,
		Summary:         summary,
		Records:         records,
	}, nil
}

func (p *Pipeline) forecastStart(training []series.Point, now time.Time) time.Time {
	if !p.cfg.Start.IsZero() {
		return p.cfg.Start
	}
	if series.HasTimestamps(training) {
		return series.Last(training).Timestamp.Add(p.cfg.Interval)
	}
	return now.Truncate(p.cfg.Interval)
}
