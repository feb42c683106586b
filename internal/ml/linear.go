package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// LinearModel predicts the next value as a weighted sum of the window plus a
// bias term.
type LinearModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Predict implements Model.
func (m *LinearModel) Predict(window []float64) float64 {
	return floats.Dot(m.Weights, window) + m.Bias
}

// LookBack implements Model.
func (m *LinearModel) LookBack() int {
	return len(m.Weights)
}

func (m *LinearModel) clone() *LinearModel {
	w := make([]float64, len(m.Weights))
	copy(w, m.Weights)
	return &LinearModel{Weights: w, Bias: m.Bias}
}

// LinearTrainer fits a LinearModel with mini-batch gradient descent on the
// mean squared error.
type LinearTrainer struct {
	metrics MetricsInterface
}

// NewLinearTrainer creates a trainer. metrics may be nil.
func NewLinearTrainer(metrics MetricsInterface) *LinearTrainer {
	return &LinearTrainer{metrics: metrics}
}

// Train implements Trainer. The trailing floor(n*ValidationSplit) rows are
// held out for validation; remaining rows are shuffled every epoch with a PRNG
// seeded from cfg.Seed, so identical inputs give identical models.
//
// Early stopping watches validation loss, or training loss when nothing is
// held out, and ends training after EarlyStoppingPatience epochs without
// improvement. The weights of the best epoch are returned.
func (t *LinearTrainer) Train(ctx context.Context, X [][]float64, y []float64, cfg TrainConfig) (Model, TrainReport, error) {
	start := time.Now()

	model, report, err := t.train(ctx, X, y, cfg)
	report.Duration = time.Since(start)

	if t.metrics != nil {
		t.metrics.TrainingDurationObserve(report.Duration.Seconds())
	}
	if err != nil {
		if t.metrics != nil {
			t.metrics.TrainingFailuresInc()
		}
		return nil, report, err
	}

	log.Info().
		Int("training_samples", report.TrainingSamples).
		Int("validation_samples", report.ValidationSamples).
		Int("epochs_run", report.EpochsRun).
		Int("best_epoch", report.BestEpoch).
		Float64("best_loss", report.BestLoss).
		Bool("stopped_early", report.StoppedEarly).
		Dur("duration", report.Duration).
		Msg("Model training finished")

	return model, report, nil
}

func (t *LinearTrainer) train(ctx context.Context, X [][]float64, y []float64, cfg TrainConfig) (*LinearModel, TrainReport, error) {
	var report TrainReport
	if err := cfg.Validate(); err != nil {
		return nil, report, fmt.Errorf("%w: %w", ErrTrainingFailure, err)
	}
	lookBack, err := checkShapes(X, y)
	if err != nil {
		return nil, report, fmt.Errorf("%w: %w", ErrTrainingFailure, err)
	}

	n := len(X)
	nVal := int(math.Floor(float64(n) * cfg.ValidationSplit))
	nTrain := n - nVal
	if nTrain == 0 {
		return nil, report, fmt.Errorf("%w: validation split %.2f leaves no training samples out of %d",
			ErrTrainingFailure, cfg.ValidationSplit, n)
	}
	report.TrainingSamples = nTrain
	report.ValidationSamples = nVal

	model := &LinearModel{Weights: make([]float64, lookBack)}
	best := model.clone()
	report.BestLoss = math.Inf(1)

	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	grad := make([]float64, lookBack)
	wait := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, report, fmt.Errorf("%w: interrupted at epoch %d: %w", ErrTrainingFailure, epoch, err)
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for lo := 0; lo < nTrain; lo += cfg.BatchSize {
			hi := min(lo+cfg.BatchSize, nTrain)

			clear(grad)
			gradBias := 0.0
			for _, idx := range order[lo:hi] {
				residual := model.Predict(X[idx]) - y[idx]
				floats.AddScaled(grad, residual, X[idx])
				gradBias += residual
			}

			// d/dw of mean((pred-y)^2) is 2/m * sum(residual * x)
			step := 2 * cfg.LearningRate / float64(hi-lo)
			floats.AddScaled(model.Weights, -step, grad)
			model.Bias -= step * gradBias
		}

		trainLoss := meanSquaredError(model, X[:nTrain], y[:nTrain])
		entry := EpochLoss{Epoch: epoch, TrainLoss: trainLoss}
		monitored := trainLoss
		valLoss := math.NaN()
		if nVal > 0 {
			valLoss = meanSquaredError(model, X[nTrain:], y[nTrain:])
			entry.ValidationLoss = &valLoss
			monitored = valLoss
		}
		report.History = append(report.History, entry)
		report.EpochsRun = epoch

		if !isFinite(trainLoss) || (nVal > 0 && !isFinite(valLoss)) {
			return nil, report, fmt.Errorf("%w: loss diverged at epoch %d (train=%v, validation=%v)",
				ErrTrainingFailure, epoch, trainLoss, valLoss)
		}

		if t.metrics != nil {
			t.metrics.TrainingEpochsInc()
			t.metrics.TrainingLossSet(trainLoss, valLoss)
		}

		log.Debug().
			Int("epoch", epoch).
			Float64("train_loss", trainLoss).
			Float64("validation_loss", valLoss).
			Msg("Epoch complete")

		if monitored < report.BestLoss {
			report.BestLoss = monitored
			report.BestEpoch = epoch
			best = model.clone()
			wait = 0
			continue
		}

		wait++
		if cfg.EarlyStoppingPatience > 0 && wait >= cfg.EarlyStoppingPatience {
			report.StoppedEarly = true
			break
		}
	}

	return best, report, nil
}

func checkShapes(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("no training samples")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("got %d windows but %d targets", len(X), len(y))
	}
	lookBack := len(X[0])
	if lookBack == 0 {
		return 0, fmt.Errorf("windows are empty")
	}
	for i, w := range X {
		if len(w) != lookBack {
			return 0, fmt.Errorf("window %d has length %d, expected %d", i, len(w), lookBack)
		}
	}
	return lookBack, nil
}

func meanSquaredError(m *LinearModel, X [][]float64, y []float64) float64 {
	sum := 0.0
	for i, w := range X {
		diff := m.Predict(w) - y[i]
		sum += diff * diff
	}
	return sum / float64(len(X))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
