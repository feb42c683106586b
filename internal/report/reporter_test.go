package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/forecast"
	"energy-forecast/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *forecast.Result {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	actual := []series.Point{{Value: 8}, {Value: 0}}
	records, summary := forecast.Compare([]float64{10, 20, math.NaN()}, actual, forecast.CompareOptions{
		Policy:   forecast.AlignIndex,
		Start:    start,
		Interval: 15 * time.Minute,
	})

	return &forecast.Result{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Settings: forecast.RunSettings{
			LookBack:        96,
			Steps:           3,
			IntervalMinutes: 15,
			ForecastStart:   start,
			Alignment:       forecast.AlignIndex,
		},
		TrainingPoints: 200,
		ActualPoints:   2,
		Records:        records,
		Summary:        summary,
	}
}

func TestGenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, NewReporter(testResult(), dir).GenerateReport())

	for _, name := range []string{common.PredictionsFile, common.ComparisonFile, common.SummaryFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestGenerateReport_NoResult(t *testing.T) {
	assert.Error(t, NewReporter(nil, t.TempDir()).GenerateReport())
}

func TestPredictionsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewReporter(testResult(), dir).GenerateReport())

	data, err := os.ReadFile(filepath.Join(dir, common.PredictionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"timestamp\"")

	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 3)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", out[0]["timestamp"])
	assert.Equal(t, "2024-01-01T00:15:00.000Z", out[1]["timestamp"])
	assert.Equal(t, 10.0, out[0]["value_kw"])
	assert.Equal(t, "NaN", out[2]["value_kw"])
}

func TestWriteComparison(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComparison(&buf, testResult().Records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"timestamp", "predicted_kw", "actual_kw", "deviation", "error_percentage"}, rows[0])
	assert.Equal(t, []string{"2024-01-01T00:00:00.000Z", "10", "8", "2", "25"}, rows[1])
	assert.Equal(t, "Infinity", rows[2][4])
	// No actual reading for the third step.
	assert.Equal(t, []string{"NaN", "", "", ""}, rows[3][1:])
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	res := testResult()
	res.DegenerateScale = true
	require.NoError(t, WriteSummary(&buf, res))

	text := buf.String()
	assert.Contains(t, text, "Run ID: run-1")
	assert.Contains(t, text, "Duration: 2s")
	assert.Contains(t, text, "Matched: 2")
	assert.Contains(t, text, "Zero Actual: 1")
	assert.Contains(t, text, "Missing Actual: 1")
	assert.Contains(t, text, "Mean Deviation: 2\n")
	assert.Contains(t, text, "Mean Error: 25%")
	assert.Contains(t, text, "WARNING: training series is constant")
}
