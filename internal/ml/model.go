// Package ml provides the regression model used by the forecasting pipeline.
// The pipeline depends only on the Trainer and Model interfaces; any
// regression technique that maps a fixed-length window to the next value can
// satisfy them.
//
// The package ships a mini-batch gradient descent linear regressor with
// validation split and early stopping.
package ml

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTrainingFailure marks a training call that could not produce a usable
// model. It is fatal to a forecast run.
var ErrTrainingFailure = errors.New("training failure")

// Model is a trained regressor. Predict must be a pure function of the window
// and the trained state, and must not retain the window slice.
type Model interface {
	// Predict returns the next normalized value following window.
	// The window length must equal LookBack.
	Predict(window []float64) float64

	// LookBack returns the window length the model was trained on.
	LookBack() int
}

// Trainer fits a Model to windowed training data.
type Trainer interface {
	Train(ctx context.Context, X [][]float64, y []float64, cfg TrainConfig) (Model, TrainReport, error)
}

// TrainConfig carries the options recognized by trainers. None of them
// affect the prediction contract.
type TrainConfig struct {
	Epochs                int     `json:"epochs" yaml:"epochs"`
	BatchSize             int     `json:"batch_size" yaml:"batchSize"`
	ValidationSplit       float64 `json:"validation_split" yaml:"validationSplit"`
	EarlyStoppingPatience int     `json:"early_stopping_patience" yaml:"earlyStoppingPatience"`
	LearningRate          float64 `json:"learning_rate" yaml:"learningRate"`
	Seed                  uint64  `json:"seed" yaml:"seed"`
}

// Validate checks that the options are usable.
func (c TrainConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in [0, 1), got %f", c.ValidationSplit)
	}
	if c.EarlyStoppingPatience < 0 {
		return fmt.Errorf("early stopping patience cannot be negative, got %d", c.EarlyStoppingPatience)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	return nil
}

// EpochLoss is the loss recorded after one training epoch. ValidationLoss
// is omitted when no validation rows were held out.
type EpochLoss struct {
	Epoch          int      `json:"epoch"`
	TrainLoss      float64  `json:"train_loss"`
	ValidationLoss *float64 `json:"validation_loss,omitempty"`
}

// TrainReport summarizes a training call.
type TrainReport struct {
	TrainingSamples   int           `json:"training_samples"`
	ValidationSamples int           `json:"validation_samples"`
	EpochsRun         int           `json:"epochs_run"`
	StoppedEarly      bool          `json:"stopped_early"`
	BestEpoch         int           `json:"best_epoch"`
	BestLoss          float64       `json:"best_loss"`
	Duration          time.Duration `json:"duration"`
	History           []EpochLoss   `json:"history"`
}

// MetricsInterface defines metrics methods needed by trainers
type MetricsInterface interface {
	TrainingEpochsInc()
	TrainingLossSet(train, validation float64)
	TrainingDurationObserve(float64)
	TrainingFailuresInc()
}
