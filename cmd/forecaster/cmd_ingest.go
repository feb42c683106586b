package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestSeries string

// ingestCmd imports readings into the local database
var ingestCmd = &cobra.Command{
	Use:   "ingest <source>...",
	Short: "Import readings into the local database",
	Long: `Load readings from CSV files, JSON files or HTTP endpoints and store them in
the local database under a series name. Stored series can be used as
training or comparison sources with the bolt:<series> location.

Examples:
  forecaster ingest --series house jan.csv feb.csv
  forecaster ingest --series house https://meter.local/api/readings`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestSeries, "series", "", "Series name (defaults to the configured series name)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.DataPath == "" {
		return fmt.Errorf("ingest needs a data path (set DATA_PATH or system.dataPath)")
	}

	name := settings.SeriesName
	if ingestSeries != "" {
		name = ingestSeries
	}

	svc, _, cleanup, err := newService(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := svc.Ingest(ctx, name, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d readings in series %q\n", n, name)
	return nil
}
