// Package forecast implements the forecasting pipeline: autoregressive
// rollout of a trained model, evaluation of the rollout against actual
// readings, and the orchestration of both with the scaling, windowing and
// training stages.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"energy-forecast/internal/ml"

	"github.com/rs/zerolog/log"
)

// ctxCheckInterval is how many rollout steps run between context checks.
const ctxCheckInterval = 1024

// MetricsInterface defines metrics methods needed by the pipeline
type MetricsInterface interface {
	RolloutStepsAdd(float64)
	RolloutNonFiniteInc()
	RolloutDurationObserve(float64)
	PipelineRunsInc()
	PipelineFailuresInc()
	EvaluationObserve(Summary)
}

// RolloutStats describes a finished rollout.
type RolloutStats struct {
	Steps          int           `json:"steps"`
	NonFinite      int           `json:"non_finite"`
	FirstNonFinite int           `json:"first_non_finite"` // -1 when every prediction was finite
	Duration       time.Duration `json:"duration"`
}

// Engine rolls a trained model forward one step at a time, feeding each
// prediction back as input to the next.
type Engine struct {
	lookBack int
	metrics  MetricsInterface
}

// NewEngine creates an engine for windows of lookBack values. metrics may be nil.
func NewEngine(lookBack int, metrics MetricsInterface) *Engine {
	return &Engine{lookBack: lookBack, metrics: metrics}
}

// Rollout predicts steps values following seed. seed must hold exactly
// lookBack normalized values, normally the tail of the training series.
//
// Each prediction is appended to the output and pushed into the window while
// the oldest value drops out, so errors compound across the horizon. Values
// are neither bounded nor re-normalized. Non-finite predictions are logged
// and counted but still fed back.
//
// The window lives in a buffer of 2*lookBack slots. Every value is written
// twice, lookBack slots apart, so buf[head:head+lookBack] is always the
// current window in order and no step allocates.
func (e *Engine) Rollout(ctx context.Context, model ml.Model, seed []float64, steps int) ([]float64, RolloutStats, error) {
	stats := RolloutStats{FirstNonFinite: -1}

	if len(seed) != e.lookBack {
		return nil, stats, fmt.Errorf("seed window has %d values, expected %d", len(seed), e.lookBack)
	}
	if model.LookBack() != e.lookBack {
		return nil, stats, fmt.Errorf("model expects windows of %d values, engine uses %d", model.LookBack(), e.lookBack)
	}
	if steps < 0 {
		return nil, stats, fmt.Errorf("steps cannot be negative, got %d", steps)
	}

	start := time.Now()
	out := make([]float64, steps)

	l := e.lookBack
	buf := make([]float64, 2*l)
	copy(buf, seed)
	copy(buf[l:], seed)
	head := 0

	for i := 0; i < steps; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, fmt.Errorf("rollout abandoned at step %d: %w", i, err)
			}
		}

		next := model.Predict(buf[head : head+l])
		out[i] = next

		if math.IsNaN(next) || math.IsInf(next, 0) {
			stats.NonFinite++
			if stats.FirstNonFinite < 0 {
				stats.FirstNonFinite = i
				log.Warn().
					Int("step", i).
					Float64("value", next).
					Msg("Non-finite prediction in rollout, continuing")
			}
			if e.metrics != nil {
				e.metrics.RolloutNonFiniteInc()
			}
		}

		buf[head] = next
		buf[head+l] = next
		head++
		if head == l {
			head = 0
		}
	}

	stats.Steps = steps
	stats.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.RolloutStepsAdd(float64(steps))
		e.metrics.RolloutDurationObserve(stats.Duration.Seconds())
	}

	if stats.NonFinite > 0 {
		log.Warn().
			Int("non_finite", stats.NonFinite).
			Int("first_step", stats.FirstNonFinite).
			Msg("Rollout produced non-finite predictions")
	}

	return out, stats, nil
}
