package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"energy-forecast/internal/cfg"
	"energy-forecast/internal/common"
	"energy-forecast/internal/metrics"
	"energy-forecast/internal/ml"
	"energy-forecast/internal/series"
	"energy-forecast/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// writeReadings writes n quarter-hour readings starting at from.
func writeReadings(t *testing.T, dir, name string, from time.Time, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,value_kw\n")
	for i := 0; i < n; i++ {
		ts := from.Add(time.Duration(i) * 15 * time.Minute)
		// A daily cycle between 1 and 3 kW.
		value := 2 + float64((i%96)-48)/48
		fmt.Fprintf(&b, "%s,%.4f\n", ts.Format("2006-01-02 15:04:05"), value)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func testSettings(t *testing.T) cfg.Settings {
	t.Helper()
	return cfg.Settings{
		SourceFormat: common.FormatAuto,
		SeriesName:   "house",
		LookBack:     8,
		Steps:        96,
		Interval:     15 * time.Minute,
		Alignment:    "timestamp",
		Train: ml.TrainConfig{
			Epochs:                5,
			BatchSize:             16,
			ValidationSplit:       0.1,
			EarlyStoppingPatience: 3,
			LearningRate:          0.05,
			Seed:                  42,
		},
		OutputDir:   filepath.Join(t.TempDir(), "out"),
		HTTPTimeout: time.Second,
	}
}

func newMetrics() (*metrics.Metrics, *metrics.MetricsWrapper) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return m, metrics.NewWrapper(m)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	settings := testSettings(t)
	settings.Sources = []string{
		writeReadings(t, dir, "part1.csv", base, 96*2),
		writeReadings(t, dir, "part2.csv", base.Add(2*24*time.Hour), 96*2),
	}
	// Actual readings for the forecast day.
	settings.CompareSource = writeReadings(t, dir, "actual.csv", base.Add(4*24*time.Hour), 96)

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	m, w := newMetrics()
	svc, err := New(settings, store, w)
	require.NoError(t, err)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 96*4, result.TrainingPoints)
	assert.True(t, result.Settings.ForecastStart.Equal(base.Add(4*24*time.Hour)))
	assert.Equal(t, 96, result.Summary.Matched)
	assert.Equal(t, 0, result.Summary.Missing)

	stored, err := store.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Summary.Matched, stored.Summary.Matched)

	for _, name := range []string{common.PredictionsFile, common.ComparisonFile, common.SummaryFile} {
		_, err := os.Stat(filepath.Join(settings.OutputDir, name))
		assert.NoError(t, err, name)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns))
	assert.Equal(t, 96.0, testutil.ToFloat64(m.RolloutSteps))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SourceLoads.WithLabelValues(common.FormatCSV)))
	assert.Greater(t, testutil.ToFloat64(m.TrainingEpochs), 0.0)
}

func TestRun_NoSources(t *testing.T) {
	_, w := newMetrics()
	svc, err := New(testSettings(t), nil, w)
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, series.ErrInvalidInput)
}

func TestRun_InvalidSeriesNotStored(t *testing.T) {
	dir := t.TempDir()
	settings := testSettings(t)
	// Too short for the look back window.
	settings.Sources = []string{writeReadings(t, dir, "short.csv", base, 4)}

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	m, w := newMetrics()
	svc, err := New(settings, store, w)
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, series.ErrInvalidInput)

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineFailures))

	_, err = os.Stat(filepath.Join(settings.OutputDir, common.PredictionsFile))
	assert.True(t, os.IsNotExist(err), "no report for a failed run")
}

func TestRun_MissingFile(t *testing.T) {
	settings := testSettings(t)
	settings.Sources = []string{filepath.Join(t.TempDir(), "absent.csv")}

	_, w := newMetrics()
	svc, err := New(settings, nil, w)
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	assert.Error(t, err)
}

func TestIngestThenRunFromStore(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, w := newMetrics()
	settings := testSettings(t)
	settings.Sources = []string{"bolt:house"}
	svc, err := New(settings, store, w)
	require.NoError(t, err)

	n, err := svc.Ingest(context.Background(), "house", []string{
		writeReadings(t, dir, "a.csv", base, 96),
		writeReadings(t, dir, "b.csv", base.Add(24*time.Hour), 96),
	})
	require.NoError(t, err)
	assert.Equal(t, 192, n)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 192, result.TrainingPoints)
	assert.Equal(t, 96, result.Summary.Missing, "no comparison source configured")
}

func TestIngest_Errors(t *testing.T) {
	dir := t.TempDir()
	_, w := newMetrics()

	svc, err := New(testSettings(t), nil, w)
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), "house", []string{writeReadings(t, dir, "a.csv", base, 4)})
	assert.Error(t, err, "no store")

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	svc, err = New(testSettings(t), store, w)
	require.NoError(t, err)

	unstamped := filepath.Join(dir, "values.csv")
	require.NoError(t, os.WriteFile(unstamped, []byte("value_kw\n1\n2\n"), 0o600))
	_, err = svc.Ingest(context.Background(), "house", []string{unstamped})
	assert.ErrorIs(t, err, series.ErrInvalidInput)

	// Overlapping files break timestamp order.
	a := writeReadings(t, dir, "x.csv", base, 10)
	_, err = svc.Ingest(context.Background(), "house", []string{a, a})
	assert.ErrorIs(t, err, series.ErrInvalidInput)
}

func TestNew_BadAlignment(t *testing.T) {
	settings := testSettings(t)
	settings.Alignment = "nearest"

	_, w := newMetrics()
	_, err := New(settings, nil, w)
	assert.Error(t, err)
}
