package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/series"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	Timeout    time.Duration
	RetryCount int           // retries after the first attempt, on transport errors and 5xx
	RetryWait  time.Duration // initial backoff between retries
	Metrics    MetricsInterface
}

// HTTPSource fetches readings from a remote endpoint answering with either
// JSON layout understood by DecodeJSON. Requests run behind a circuit
// breaker that opens after three consecutive failed loads.
type HTTPSource struct {
	url     string
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker
	metrics MetricsInterface
}

// NewHTTPSource creates a source for url. A zero Timeout means 10s.
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	r := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	st := gobreaker.Settings{Name: url}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("source", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	}

	return &HTTPSource{
		url:     url,
		rest:    r,
		breaker: gobreaker.NewCircuitBreaker(st),
		metrics: opts.Metrics,
	}
}

func (s *HTTPSource) Name() string   { return s.url }
func (s *HTTPSource) Format() string { return common.FormatHTTP }

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) ([]series.Point, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			if s.metrics != nil {
				s.metrics.CircuitBreakerRejectedInc()
			}
		}
		return nil, err
	}
	return result.([]series.Point), nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]series.Point, error) {
	resp, err := s.rest.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", s.url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request %s: unexpected status %d", s.url, resp.StatusCode())
	}
	return DecodeJSON(resp.Body())
}
