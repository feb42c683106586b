// Package service wires the loaders, the forecasting pipeline, the run
// history and the report writer into the operations exposed by the CLI and
// the HTTP API.
package service

import (
	"context"
	"fmt"

	"energy-forecast/internal/cfg"
	"energy-forecast/internal/forecast"
	"energy-forecast/internal/loader"
	"energy-forecast/internal/metrics"
	"energy-forecast/internal/ml"
	"energy-forecast/internal/report"
	"energy-forecast/internal/series"
	"energy-forecast/internal/storage"

	"github.com/rs/zerolog/log"
)

// Service runs forecasts with one set of settings.
type Service struct {
	settings cfg.Settings
	pipeline *forecast.Pipeline
	store    *storage.Store // nil disables the run history and bolt sources
	metrics  *metrics.MetricsWrapper
}

// New creates a service. store may be nil; m must not be.
func New(settings cfg.Settings, store *storage.Store, m *metrics.MetricsWrapper) (*Service, error) {
	pipelineCfg, err := settings.PipelineConfig()
	if err != nil {
		return nil, err
	}
	return &Service{
		settings: settings,
		pipeline: forecast.NewPipeline(pipelineCfg, ml.NewLinearTrainer(m), m),
		store:    store,
		metrics:  m,
	}, nil
}

// Metrics returns the metrics wrapper shared by the service components.
func (s *Service) Metrics() *metrics.MetricsWrapper {
	return s.metrics
}

func (s *Service) loaderOptions() loader.Options {
	return loader.Options{
		Format:      s.settings.SourceFormat,
		Store:       s.store,
		HTTPTimeout: s.settings.HTTPTimeout,
		Metrics:     s.metrics,
	}
}

// Run loads the training and comparison series, forecasts, stores the run
// and writes its reports. The run is stored only once it has been fully
// evaluated.
func (s *Service) Run(ctx context.Context) (*forecast.Result, error) {
	if err := s.settings.RequireSources(); err != nil {
		return nil, fmt.Errorf("%w: %w", series.ErrInvalidInput, err)
	}

	opts := s.loaderOptions()
	sources, err := loader.OpenAll(s.settings.Sources, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", series.ErrInvalidInput, err)
	}
	training, err := loader.LoadAll(ctx, sources, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("load training series: %w", err)
	}

	var actual []series.Point
	if s.settings.CompareSource != "" {
		src, err := loader.Open(s.settings.CompareSource, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", series.ErrInvalidInput, err)
		}
		actual, err = loader.LoadAll(ctx, []loader.Source{src}, s.metrics)
		if err != nil {
			return nil, fmt.Errorf("load comparison series: %w", err)
		}
	} else {
		log.Warn().Msg("No comparison source configured, records will have no actual values")
	}

	result, err := s.pipeline.Run(ctx, training, actual)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.StoreRun(result); err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
	}
	if err := report.NewReporter(result, s.settings.OutputDir).GenerateReport(); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	return result, nil
}

// Ingest loads the given sources and writes them into the local store
// under name. It returns the number of points written.
func (s *Service) Ingest(ctx context.Context, name string, locations []string) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("ingest needs a data path for the local database")
	}

	sources, err := loader.OpenAll(locations, s.loaderOptions())
	if err != nil {
		return 0, err
	}
	points, err := loader.LoadAll(ctx, sources, s.metrics)
	if err != nil {
		return 0, err
	}
	if err := series.Validate(points); err != nil {
		return 0, err
	}
	if !series.HasTimestamps(points) {
		return 0, fmt.Errorf("%w: ingested readings must carry timestamps", series.ErrInvalidInput)
	}

	if err := s.store.StorePoints(name, points); err != nil {
		return 0, fmt.Errorf("store points: %w", err)
	}

	log.Info().Str("series", name).Int("points", len(points)).Msg("Series ingested")
	return len(points), nil
}
