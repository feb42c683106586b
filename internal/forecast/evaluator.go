package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"energy-forecast/internal/series"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AlignmentPolicy selects how forecast steps are paired with actual readings.
type AlignmentPolicy string

const (
	// AlignIndex pairs forecast[i] with actual[i].
	AlignIndex AlignmentPolicy = "index"
	// AlignTimestamp pairs the forecast step at Start + i*Interval with the
	// actual reading stamped exactly at that instant.
	AlignTimestamp AlignmentPolicy = "timestamp"
)

// ParseAlignmentPolicy converts a configuration string to a policy.
func ParseAlignmentPolicy(s string) (AlignmentPolicy, error) {
	switch AlignmentPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case AlignIndex:
		return AlignIndex, nil
	case AlignTimestamp:
		return AlignTimestamp, nil
	}
	return "", fmt.Errorf("unknown alignment policy %q (expected %q or %q)", s, AlignIndex, AlignTimestamp)
}

// CompareOptions configures Compare.
type CompareOptions struct {
	Policy   AlignmentPolicy
	Start    time.Time     // timestamp of the first forecast step
	Interval time.Duration // spacing between forecast steps

	// FillMissing substitutes MissingValue for actual readings absent under
	// index alignment. When false such records carry no actual value.
	FillMissing  bool
	MissingValue float64
}

// ResultRecord is one forecast step, paired with its actual reading when one
// was found. Deviation and ErrorPercentage are set only for matched records.
type ResultRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	PredictedValue  Number    `json:"predictedValue"`
	ActualValue     *Number   `json:"actualValue"`
	Deviation       *Number   `json:"deviation"`
	ErrorPercentage *Number   `json:"errorPercentage"`
}

// Summary aggregates a comparison. Statistics cover only matched records
// whose deviation and error percentage are both finite, so records with an
// actual value of zero or a non-finite prediction are counted but excluded.
type Summary struct {
	Records              int    `json:"records"`
	Matched              int    `json:"matched"`
	Missing              int    `json:"missing"`
	ZeroActual           int    `json:"zero_actual"`
	NonFinitePredictions int    `json:"non_finite_predictions"`
	Evaluated            int    `json:"evaluated"`
	MeanDeviation        Number `json:"mean_deviation"`
	MeanErrorPercentage  Number `json:"mean_error_percentage"`
	RootMeanSquaredError Number `json:"root_mean_squared_error"`
	MaxDeviation         Number `json:"max_deviation"`
}

// Compare pairs forecast values with actual readings and computes per-record
// and aggregate deviation. Missing actual values and non-finite numbers are
// represented in the output and excluded from the aggregates; they never
// cause an error.
func Compare(forecast []float64, actual []series.Point, opts CompareOptions) ([]ResultRecord, Summary) {
	records := make([]ResultRecord, len(forecast))

	var byTime map[int64]float64
	if opts.Policy == AlignTimestamp {
		byTime = make(map[int64]float64, len(actual))
		for _, p := range actual {
			if p.Timestamp.IsZero() {
				continue
			}
			key := p.Timestamp.UnixNano()
			if _, dup := byTime[key]; !dup {
				byTime[key] = p.Value
			}
		}
	}

	for i, predicted := range forecast {
		ts := opts.Start.Add(time.Duration(i) * opts.Interval)
		rec := ResultRecord{Timestamp: ts, PredictedValue: Number(predicted)}

		var value float64
		found := false
		switch opts.Policy {
		case AlignTimestamp:
			value, found = byTime[ts.UnixNano()]
		default:
			if i < len(actual) {
				value, found = actual[i].Value, true
			} else if opts.FillMissing {
				value, found = opts.MissingValue, true
			}
		}

		if found {
			deviation := math.Abs(predicted - value)
			rec.ActualValue = numberPtr(value)
			rec.Deviation = numberPtr(deviation)
			rec.ErrorPercentage = numberPtr(errorPercentage(deviation, value))
		}
		records[i] = rec
	}

	return records, Summarize(records)
}

// errorPercentage is deviation relative to |actual|. It is +Inf whenever the
// actual value is zero.
func errorPercentage(deviation, actual float64) float64 {
	if actual == 0 {
		return math.Inf(1)
	}
	return deviation / math.Abs(actual) * 100
}

// Summarize computes aggregate statistics over records.
func Summarize(records []ResultRecord) Summary {
	s := Summary{Records: len(records)}

	deviations := make([]float64, 0, len(records))
	percentages := make([]float64, 0, len(records))

	for _, r := range records {
		if !r.PredictedValue.IsFinite() {
			s.NonFinitePredictions++
		}
		if r.ActualValue == nil {
			s.Missing++
			continue
		}
		s.Matched++
		if r.ActualValue.Float() == 0 {
			s.ZeroActual++
			continue
		}
		if r.Deviation == nil || !r.Deviation.IsFinite() {
			continue
		}
		if r.ErrorPercentage == nil || !r.ErrorPercentage.IsFinite() {
			continue
		}
		deviations = append(deviations, r.Deviation.Float())
		percentages = append(percentages, r.ErrorPercentage.Float())
	}

	s.Evaluated = len(deviations)
	s.MeanDeviation = Number(mean(deviations))
	s.MeanErrorPercentage = Number(mean(percentages))
	s.RootMeanSquaredError = Number(rootMeanSquare(deviations))
	s.MaxDeviation = Number(math.NaN())
	if len(deviations) > 0 {
		s.MaxDeviation = Number(floats.Max(deviations))
	}
	return s
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

func rootMeanSquare(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return math.Sqrt(floats.Dot(values, values) / float64(len(values)))
}
