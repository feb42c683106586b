package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runCmd runs one forecast and writes its reports
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one forecast and write the reports",
	Long: `Load the training sources, train the model, forecast the configured number
of steps and compare them with the comparison source. Reports are written to
the output directory and, when a data path is set, the run is added to the
local run history.

Examples:
  forecaster run --config forecast.yaml
  SOURCES=jan.csv,feb.csv COMPARE_SOURCE=mar.csv forecaster run`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := settings.RequireSources(); err != nil {
		return err
	}

	svc, _, cleanup, err := newService(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("matched", result.Summary.Matched).
		Stringer("mean_deviation", result.Summary.MeanDeviation).
		Stringer("mean_error_percentage", result.Summary.MeanErrorPercentage).
		Str("output_dir", settings.OutputDir).
		Msg("Forecast written")
	return nil
}
