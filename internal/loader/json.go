package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"energy-forecast/internal/common"
	"energy-forecast/internal/series"
)

// dailyDocument is the daily export format: one total per calendar day.
type dailyDocument struct {
	EntriesDaily []dailyEntry `json:"entriesDaily"`
}

type dailyEntry struct {
	Day         string   `json:"day"`
	DayTotalKWh *float64 `json:"day_total_kwh"`
}

// pointRecord is a reading in the point-list format.
type pointRecord struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// JSONSource reads either a daily export ({"entriesDaily": [...]}) or a
// plain array of {"timestamp", "value"} readings.
type JSONSource struct {
	Path string
}

func (s *JSONSource) Name() string   { return s.Path }
func (s *JSONSource) Format() string { return common.FormatJSON }

// Load implements Source.
func (s *JSONSource) Load(_ context.Context) ([]series.Point, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	return DecodeJSON(data)
}

// DecodeJSON parses readings in either JSON layout.
func DecodeJSON(data []byte) ([]series.Point, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %w", series.ErrInvalidInput, err)
	}

	if len(raw) > 0 && raw[0] == '[' {
		var records []pointRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: decode readings: %w", series.ErrInvalidInput, err)
		}
		points := make([]series.Point, len(records))
		for i, r := range records {
			if r.Value == nil {
				return nil, fmt.Errorf("%w: reading %d has no value", series.ErrInvalidInput, i)
			}
			ts, err := parseTimestamp(r.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("%w: reading %d: %w", series.ErrInvalidInput, i, err)
			}
			points[i] = series.Point{Timestamp: ts, Value: *r.Value}
		}
		return points, nil
	}

	var doc dailyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode daily entries: %w", series.ErrInvalidInput, err)
	}
	if doc.EntriesDaily == nil {
		return nil, fmt.Errorf("%w: document has no entriesDaily", series.ErrInvalidInput)
	}

	points := make([]series.Point, len(doc.EntriesDaily))
	for i, e := range doc.EntriesDaily {
		if e.DayTotalKWh == nil {
			return nil, fmt.Errorf("%w: entry %d has no day_total_kwh", series.ErrInvalidInput, i)
		}
		ts, err := parseTimestamp(e.Day)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", series.ErrInvalidInput, i, err)
		}
		points[i] = series.Point{Timestamp: ts, Value: *e.DayTotalKWh}
	}
	return points, nil
}
