package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"energy-forecast/internal/ml"
	"energy-forecast/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		LookBack: 2,
		Steps:    3,
		Interval: 15 * time.Minute,
		Train: ml.TrainConfig{
			Epochs:          5,
			BatchSize:       4,
			ValidationSplit: 0,
			LearningRate:    0.01,
			Seed:            1,
		},
		Alignment: AlignIndex,
	}
}

func TestPipeline_RunEndToEnd(t *testing.T) {
	// A constant normalized prediction of 0.5 over [0, 100] is 50 kW.
	trainer := &stubTrainer{model: ml.ConstantModel{Value: 0.5, Window: 2}}
	metrics := &MockMetrics{}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	training := stamped(start, 15*time.Minute, 0, 25, 100, 75)
	actual := unstamped(40, 50, 0)

	result, err := NewPipeline(testConfig(), trainer, metrics).Run(context.Background(), training, actual)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.TrainingPoints)
	assert.Equal(t, 3, result.ActualPoints)
	assert.False(t, result.DegenerateScale)
	assert.Equal(t, 0.0, result.Scaling.Min)
	assert.Equal(t, 100.0, result.Scaling.Max)

	// The trainer sees normalized windows.
	assert.Equal(t, [][]float64{{0, 0.25}, {0.25, 1}}, trainer.lastX)
	assert.Equal(t, []float64{1, 0.75}, trainer.lastY)

	require.Len(t, result.Records, 3)
	for i, r := range result.Records {
		assert.InDelta(t, 50.0, r.PredictedValue.Float(), 1e-9, "record %d", i)
	}
	assert.True(t, result.Records[0].Timestamp.Equal(start.Add(time.Hour)))
	assert.InDelta(t, 10.0, result.Records[0].Deviation.Float(), 1e-9)
	assert.True(t, math.IsInf(result.Records[2].ErrorPercentage.Float(), 1))

	assert.Equal(t, 2, result.Summary.Evaluated)
	assert.InDelta(t, 5.0, result.Summary.MeanDeviation.Float(), 1e-9)

	assert.Equal(t, 1, metrics.runs)
	assert.Equal(t, 0, metrics.failures)
	assert.Len(t, metrics.evaluations, 1)
	assert.Equal(t, 3.0, metrics.steps)
}

func TestPipeline_ForecastStart(t *testing.T) {
	trainer := &stubTrainer{model: ml.ConstantModel{Window: 2}}
	fixedNow := time.Date(2024, 5, 5, 10, 7, 30, 0, time.UTC)

	t.Run("explicit start wins", func(t *testing.T) {
		cfg := testConfig()
		cfg.Start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		p := NewPipeline(cfg, trainer, nil)

		result, err := p.Run(context.Background(), stamped(fixedNow, time.Hour, 1, 2, 3), nil)
		require.NoError(t, err)
		assert.True(t, result.Settings.ForecastStart.Equal(cfg.Start))
	})

	t.Run("after last training timestamp", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		result, err := NewPipeline(testConfig(), trainer, nil).Run(context.Background(), stamped(start, 15*time.Minute, 1, 2, 3), nil)
		require.NoError(t, err)
		assert.True(t, result.Settings.ForecastStart.Equal(start.Add(45*time.Minute)))
	})

	t.Run("unstamped training uses run time", func(t *testing.T) {
		p := NewPipeline(testConfig(), trainer, nil)
		p.now = func() time.Time { return fixedNow }

		result, err := p.Run(context.Background(), unstamped(1, 2, 3), nil)
		require.NoError(t, err)
		assert.True(t, result.Settings.ForecastStart.Equal(time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)))
	})
}

func TestPipeline_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		training []series.Point
		actual   []series.Point
	}{
		{"empty training", nil, nil, nil},
		{"lookBack equals length", nil, unstamped(1, 2), nil},
		{"lookBack zero", func(c *Config) { c.LookBack = 0 }, unstamped(1, 2, 3), nil},
		{"negative steps", func(c *Config) { c.Steps = -1 }, unstamped(1, 2, 3), nil},
		{"zero interval", func(c *Config) { c.Interval = 0 }, unstamped(1, 2, 3), nil},
		{"unknown alignment", func(c *Config) { c.Alignment = "nearest" }, unstamped(1, 2, 3), nil},
		{"non-finite training", nil, unstamped(1, math.NaN(), 3), nil},
		{"non-finite actual", nil, unstamped(1, 2, 3), unstamped(math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			trainer := &stubTrainer{model: ml.ConstantModel{Window: cfg.LookBack}}
			metrics := &MockMetrics{}

			result, err := NewPipeline(cfg, trainer, metrics).Run(context.Background(), tt.training, tt.actual)
			assert.ErrorIs(t, err, series.ErrInvalidInput)
			assert.Nil(t, result)
			assert.Equal(t, 0, trainer.calls, "trainer must not run on invalid input")
			assert.Equal(t, 1, metrics.failures)
			assert.Empty(t, metrics.evaluations)
		})
	}
}

func TestPipeline_TrainingFailure(t *testing.T) {
	trainer := &stubTrainer{err: errors.Join(ml.ErrTrainingFailure, errors.New("loss diverged"))}
	metrics := &MockMetrics{}

	result, err := NewPipeline(testConfig(), trainer, metrics).Run(context.Background(), unstamped(1, 2, 3, 4), unstamped(5))
	assert.ErrorIs(t, err, ml.ErrTrainingFailure)
	assert.Nil(t, result)
	assert.Equal(t, 1, metrics.failures)
	assert.Zero(t, metrics.steps, "no rollout after a failed training")
}

func TestPipeline_DegenerateSeries(t *testing.T) {
	trainer := &stubTrainer{model: ml.ConstantModel{Value: 0.3, Window: 2}}

	result, err := NewPipeline(testConfig(), trainer, nil).Run(context.Background(), unstamped(7, 7, 7, 7), unstamped(7))
	require.NoError(t, err)

	assert.True(t, result.DegenerateScale)
	assert.Equal(t, [][]float64{{0, 0}, {0, 0}}, trainer.lastX)
	// Denormalizing a degenerate scale shifts by the constant.
	assert.InDelta(t, 7.3, result.Records[0].PredictedValue.Float(), 1e-12)
	for _, r := range result.Records {
		assert.True(t, r.PredictedValue.IsFinite())
	}
}

func TestPipeline_TimestampAlignment(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.Alignment = AlignTimestamp
	cfg.Interval = time.Hour

	trainer := &stubTrainer{model: ml.ConstantModel{Value: 1, Window: 2}}
	training := stamped(start, time.Hour, 0, 5, 10)
	// The forecast begins at 03:00; only 04:00 has a reading.
	actual := []series.Point{{Timestamp: start.Add(4 * time.Hour), Value: 8}}

	result, err := NewPipeline(cfg, trainer, nil).Run(context.Background(), training, actual)
	require.NoError(t, err)

	assert.Nil(t, result.Records[0].ActualValue)
	require.NotNil(t, result.Records[1].ActualValue)
	assert.InDelta(t, 2.0, result.Records[1].Deviation.Float(), 1e-12)
	assert.Equal(t, 1, result.Summary.Matched)
	assert.Equal(t, 2, result.Summary.Missing)
}

func TestPipeline_LinearTrainer(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = 50 + 10*math.Sin(float64(i)/8)
	}
	cfg := testConfig()
	cfg.LookBack = 8
	cfg.Steps = 16
	cfg.Train = ml.TrainConfig{
		Epochs:                40,
		BatchSize:             16,
		ValidationSplit:       0.1,
		EarlyStoppingPatience: 5,
		LearningRate:          0.05,
		Seed:                  42,
	}

	p := NewPipeline(cfg, ml.NewLinearTrainer(nil), nil)
	result, err := p.Run(context.Background(), unstamped(values...), unstamped(values[:16]...))
	require.NoError(t, err)

	require.Len(t, result.Records, 16)
	assert.Equal(t, 0, result.Summary.NonFinitePredictions)
	assert.Greater(t, result.Training.EpochsRun, 0)
	assert.Equal(t, 173, result.Training.TrainingSamples)
	assert.Equal(t, 19, result.Training.ValidationSamples)

	again, err := p.Run(context.Background(), unstamped(values...), unstamped(values[:16]...))
	require.NoError(t, err)
	for i := range result.Records {
		assert.Equal(t, result.Records[i].PredictedValue, again.Records[i].PredictedValue, "record %d", i)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.LookBack = 1
	trainer := &stubTrainer{model: ml.ConstantModel{Window: 1}}
	result, err := NewPipeline(cfg, trainer, nil).Run(ctx, unstamped(1, 2), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}
