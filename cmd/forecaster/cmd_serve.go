package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"energy-forecast/internal/server"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveRateLimit float64
	serveBurst     int
)

// serveCmd exposes forecasts over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve forecasts, run history and metrics over HTTP",
	Long: `Start the HTTP API. GET /forecast runs the configured forecast, /runs lists
stored runs, /health reports liveness and /metrics exposes Prometheus metrics.

Examples:
  forecaster serve --config forecast.yaml
  forecaster serve --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (defaults to the configured metrics port)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 6, "Forecast requests allowed per minute (0 disables the limit)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 2, "Forecast requests allowed in a burst")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	svc, store, cleanup, err := newService(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	port := settings.MetricsPort
	if servePort != 0 {
		port = servePort
	}

	var runs server.RunStore
	if store != nil {
		runs = store
	} else {
		log.Warn().Msg("No data path configured, run history is disabled")
	}
	srv := server.New(svc, runs, promhttp.Handler(), svc.Metrics(), port)
	srv.SetForecastRateLimit(serveRateLimit, serveBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
