package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"energy-forecast/internal/common"
	"energy-forecast/internal/series"
)

// CSV column names. The value column may also be called "value".
const (
	csvTimestampColumn = "timestamp"
	csvValueColumn     = "value_kw"
)

// CSVSource reads a file with a header row and at least a value_kw column.
// The timestamp column is optional; when absent the series is unstamped.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string   { return s.Path }
func (s *CSVSource) Format() string { return common.FormatCSV }

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) ([]series.Point, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ReadCSV(ctx, file)
}

// ReadCSV parses CSV readings from r. Malformed rows are errors, not skipped.
func ReadCSV(ctx context.Context, r io.Reader) ([]series.Point, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.ToLower(strings.TrimSpace(col))] = i
	}
	valueIdx, ok := indices[csvValueColumn]
	if !ok {
		if valueIdx, ok = indices["value"]; !ok {
			return nil, fmt.Errorf("%w: CSV header has no %s column", series.ErrInvalidInput, csvValueColumn)
		}
	}
	tsIdx, hasTimestamp := indices[csvTimestampColumn]

	var points []series.Point
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CSV line %d: %w", series.ErrInvalidInput, line, err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: CSV line %d: bad value %q", series.ErrInvalidInput, line, record[valueIdx])
		}

		point := series.Point{Value: value}
		if hasTimestamp {
			if point.Timestamp, err = parseTimestamp(record[tsIdx]); err != nil {
				return nil, fmt.Errorf("%w: CSV line %d: %w", series.ErrInvalidInput, line, err)
			}
		}
		points = append(points, point)
	}

	return points, nil
}
