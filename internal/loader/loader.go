// Package loader reads consumption series from files, the local BoltDB store
// and remote HTTP endpoints.
//
// Every source yields a []series.Point in file order. Several sources, for
// example one file per year, are loaded concurrently by LoadAll and joined
// in the order they were given.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/series"
	"energy-forecast/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// boltPrefix selects a stored series, as in "bolt:consumption".
const boltPrefix = "bolt:"

// Source produces a consumption series.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Format is one of the common.Format* values.
	Format() string
	Load(ctx context.Context) ([]series.Point, error)
}

// MetricsInterface defines metrics methods needed by the loaders
type MetricsInterface interface {
	SourceLoaded(format string, points int)
	SourceFailed(format string)
	CircuitBreakerRejectedInc()
}

// Options configures Open.
type Options struct {
	Format      string         // common.FormatAuto when empty
	Store       *storage.Store // required for BoltDB sources
	HTTPTimeout time.Duration
	Start, End  time.Time // optional range for BoltDB sources
	Metrics     MetricsInterface
}

// DetectFormat infers the source format from a location.
func DetectFormat(location string) (string, error) {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, boltPrefix):
		return common.FormatBoltDB, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return common.FormatHTTP, nil
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv":
		return common.FormatCSV, nil
	case ".json":
		return common.FormatJSON, nil
	}
	return "", fmt.Errorf("cannot detect format of %q", location)
}

// Open creates the source for location.
func Open(location string, opts Options) (Source, error) {
	format := opts.Format
	if format == "" || format == common.FormatAuto {
		detected, err := DetectFormat(location)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case common.FormatCSV:
		return &CSVSource{Path: location}, nil
	case common.FormatJSON:
		return &JSONSource{Path: location}, nil
	case common.FormatBoltDB:
		if opts.Store == nil {
			return nil, fmt.Errorf("source %q needs the local database", location)
		}
		name := location
		if strings.HasPrefix(strings.ToLower(name), boltPrefix) {
			name = name[len(boltPrefix):]
		}
		return &BoltSource{Store: opts.Store, Series: name, Start: opts.Start, End: opts.End}, nil
	case common.FormatHTTP:
		return NewHTTPSource(location, HTTPOptions{Timeout: opts.HTTPTimeout, RetryCount: 2, Metrics: opts.Metrics}), nil
	}
	return nil, fmt.Errorf("unsupported source format: %s", format)
}

// OpenAll opens every location with the same options.
func OpenAll(locations []string, opts Options) ([]Source, error) {
	sources := make([]Source, 0, len(locations))
	for _, location := range locations {
		src, err := Open(location, opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// LoadAll loads sources concurrently and concatenates them in input order.
// The first failure cancels the remaining loads.
func LoadAll(ctx context.Context, sources []Source, metrics MetricsInterface) ([]series.Point, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", series.ErrInvalidInput)
	}

	parts := make([][]series.Point, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			points, err := src.Load(gctx)
			if err != nil {
				if metrics != nil {
					metrics.SourceFailed(src.Format())
				}
				return fmt.Errorf("load %s: %w", src.Name(), err)
			}
			if metrics != nil {
				metrics.SourceLoaded(src.Format(), len(points))
			}
			log.Info().
				Str("source", src.Name()).
				Str("format", src.Format()).
				Int("points", len(points)).
				Dur("elapsed", time.Since(start)).
				Msg("Source loaded")
			parts[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	all := make([]series.Point, 0, total)
	for _, p := range parts {
		all = append(all, p...)
	}
	return all, nil
}

// timestampLayouts are tried in order when parsing reading timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp parses a reading timestamp. Times without a zone are UTC.
// An empty string yields the zero time.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
