package main

import (
	"os"
	"strings"
	"time"

	"energy-forecast/internal/cfg"
	"energy-forecast/internal/metrics"
	"energy-forecast/internal/service"
	"energy-forecast/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command for the forecaster CLI
var rootCmd = &cobra.Command{
	Use:   "forecaster",
	Short: "Energy consumption forecaster",
	Long: `forecaster trains a sliding-window regression model on historical energy
readings, forecasts the following steps autoregressively and compares the
forecast with actual readings.

Settings come from a YAML file (--config or CONFIG_FILE), environment
variables and a .env file in the working directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.LoadDotEnv(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("forecaster failed")
	}
}

// loadSettings loads the configuration and applies the global log level.
func loadSettings() (cfg.Settings, error) {
	settings, err := cfg.Load(configPath)
	if err != nil {
		return cfg.Settings{}, err
	}

	level := settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return cfg.Settings{}, err
	}
	zerolog.SetGlobalLevel(parsed)
	return settings, nil
}

// initializeStorage opens the local database when a data path is configured.
func initializeStorage(settings cfg.Settings) (*storage.Store, error) {
	if settings.DataPath == "" {
		return nil, nil
	}
	store, err := storage.New(settings.DataPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", store.Path()).Msg("Local database opened")
	return store, nil
}

// newService builds the service for one command invocation. The returned
// cleanup closes the store.
func newService(settings cfg.Settings) (*service.Service, *storage.Store, func(), error) {
	store, err := initializeStorage(settings)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close local database")
			}
		}
	}

	svc, err := service.New(settings, store, metrics.NewWrapper(metrics.New()))
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return svc, store, cleanup, nil
}
