// Package report writes the artifacts of a forecast run to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/forecast"

	"github.com/rs/zerolog/log"
)

// isoLayout matches the millisecond UTC timestamps of the predictions file.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Prediction is one entry of predictions.json.
type Prediction struct {
	Timestamp string          `json:"timestamp"`
	ValueKW   forecast.Number `json:"value_kw"`
}

// Reporter generates run reports
type Reporter struct {
	result     *forecast.Result
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(result *forecast.Result, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		outputPath: outputPath,
	}
}

// GenerateReport writes predictions.json, comparison.csv and
// forecast_summary.txt to the output directory.
func (r *Reporter) GenerateReport() error {
	if r.result == nil {
		return fmt.Errorf("no result to report")
	}
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generatePredictions(); err != nil {
		return err
	}
	if err := r.generateComparison(); err != nil {
		return err
	}
	return r.generateSummary()
}

// Predictions converts the run records to the predictions file layout.
func Predictions(result *forecast.Result) []Prediction {
	out := make([]Prediction, len(result.Records))
	for i, rec := range result.Records {
		out[i] = Prediction{
			Timestamp: rec.Timestamp.UTC().Format(isoLayout),
			ValueKW:   rec.PredictedValue,
		}
	}
	return out
}

func (r *Reporter) generatePredictions() error {
	path := filepath.Join(r.outputPath, common.PredictionsFile)

	data, err := json.MarshalIndent(Predictions(r.result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal predictions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}

	log.Info().Str("file", path).Int("predictions", len(r.result.Records)).Msg("Forecast saved")
	return nil
}

func (r *Reporter) generateComparison() error {
	path := filepath.Join(r.outputPath, common.ComparisonFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create comparison file: %w", err)
	}
	defer file.Close()

	if err := WriteComparison(file, r.result.Records); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}

	log.Info().Str("file", path).Msg("Comparison report generated")
	return nil
}

// WriteComparison writes one CSV row per record. Missing values are empty
// cells; non-finite values are written as Infinity, -Infinity or NaN.
func WriteComparison(w io.Writer, records []forecast.ResultRecord) error {
	writer := csv.NewWriter(w)

	header := []string{"timestamp", "predicted_kw", "actual_kw", "deviation", "error_percentage"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(isoLayout),
			rec.PredictedValue.String(),
			optional(rec.ActualValue),
			optional(rec.Deviation),
			optional(rec.ErrorPercentage),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func optional(n *forecast.Number) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func (r *Reporter) generateSummary() error {
	path := filepath.Join(r.outputPath, common.SummaryFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := WriteSummary(file, r.result); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	log.Info().Str("file", path).Msg("Summary report generated")
	return nil
}

// WriteSummary writes a human-readable run summary.
func WriteSummary(w io.Writer, res *forecast.Result) error {
	s := res.Summary
	settings := res.Settings

	lines := []string{
		"FORECAST RUN SUMMARY",
		"====================",
		"",
		fmt.Sprintf("Run ID: %s", res.RunID),
		fmt.Sprintf("Started: %s", res.StartedAt.Format(time.RFC3339)),
		fmt.Sprintf("Duration: %s", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)),
		"",
		"SETTINGS",
		"--------",
		fmt.Sprintf("Look Back: %d", settings.LookBack),
		fmt.Sprintf("Steps: %d", settings.Steps),
		fmt.Sprintf("Interval: %g minutes", settings.IntervalMinutes),
		fmt.Sprintf("Forecast Start: %s", settings.ForecastStart.Format(time.RFC3339)),
		fmt.Sprintf("Alignment: %s", settings.Alignment),
		"",
		"TRAINING",
		"--------",
		fmt.Sprintf("Training Points: %d", res.TrainingPoints),
		fmt.Sprintf("Scaling: min %.4f, max %.4f", res.Scaling.Min, res.Scaling.Max),
		fmt.Sprintf("Samples: %d training, %d validation", res.Training.TrainingSamples, res.Training.ValidationSamples),
		fmt.Sprintf("Epochs Run: %d (best %d, loss %.6f)", res.Training.EpochsRun, res.Training.BestEpoch, res.Training.BestLoss),
		fmt.Sprintf("Stopped Early: %t", res.Training.StoppedEarly),
	}
	if res.DegenerateScale {
		lines = append(lines, "WARNING: training series is constant, predictions are shifted by its value")
	}

	lines = append(lines,
		"",
		"EVALUATION",
		"----------",
		fmt.Sprintf("Actual Points: %d", res.ActualPoints),
		fmt.Sprintf("Records: %d", s.Records),
		fmt.Sprintf("Matched: %d", s.Matched),
		fmt.Sprintf("Missing Actual: %d", s.Missing),
		fmt.Sprintf("Zero Actual: %d", s.ZeroActual),
		fmt.Sprintf("Non-finite Predictions: %d", s.NonFinitePredictions),
		fmt.Sprintf("Evaluated: %d", s.Evaluated),
		fmt.Sprintf("Mean Deviation: %s", s.MeanDeviation),
		fmt.Sprintf("Mean Error: %s%%", s.MeanErrorPercentage),
		fmt.Sprintf("RMSE: %s", s.RootMeanSquaredError),
		fmt.Sprintf("Max Deviation: %s", s.MaxDeviation),
	)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
