package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/forecast"
	"energy-forecast/internal/ml"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Sources       []string
	CompareSource string
	SourceFormat  string
	SeriesName    string

	LookBack      int
	Steps         int
	Interval      time.Duration
	ForecastStart time.Time
	Alignment     string
	FillMissing   bool
	MissingValue  float64

	Train ml.TrainConfig

	OutputDir   string
	DataPath    string
	MetricsPort int
	HTTPTimeout time.Duration
	LogLevel    string
}

type ConfigFile struct {
	Data struct {
		Sources       []string `yaml:"sources"`
		CompareSource string   `yaml:"compareSource"`
		Format        string   `yaml:"format"`
		SeriesName    string   `yaml:"seriesName"`
	} `yaml:"data"`

	Forecast struct {
		LookBack        int     `yaml:"lookBack"`
		Steps           *int    `yaml:"steps"`
		IntervalMinutes int     `yaml:"intervalMinutes"`
		Start           string  `yaml:"start"`
		Alignment       string  `yaml:"alignment"`
		FillMissing     bool    `yaml:"fillMissing"`
		MissingValue    float64 `yaml:"missingValue"`
	} `yaml:"forecast"`

	Training struct {
		Epochs                int      `yaml:"epochs"`
		BatchSize             int      `yaml:"batchSize"`
		ValidationSplit       *float64 `yaml:"validationSplit"`
		EarlyStoppingPatience *int     `yaml:"earlyStoppingPatience"`
		LearningRate          float64  `yaml:"learningRate"`
		Seed                  *uint64  `yaml:"seed"`
	} `yaml:"training"`

	System struct {
		OutputDir   string `yaml:"outputDir"`
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		HTTPTimeout string `yaml:"httpTimeout"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads settings from the YAML file at configPath, or from CONFIG_FILE
// when configPath is empty. Without a file, settings come from the
// environment alone. Environment variables override file values.
func Load(configPath string) (Settings, error) {
	if configPath == "" {
		configPath = os.Getenv(common.EnvConfigFile)
	}
	if configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	httpTimeout, err := time.ParseDuration(config.System.HTTPTimeout)
	if err != nil {
		httpTimeout = 10 * time.Second
	}
	intervalMinutes := config.Forecast.IntervalMinutes
	if intervalMinutes == 0 {
		intervalMinutes = common.DefaultIntervalMinutes
	}

	start, err := getTimeFromEnvOrConfig(common.EnvForecastStart, config.Forecast.Start)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		Sources:       getListFromEnvOrConfig(common.EnvSources, config.Data.Sources),
		CompareSource: getEnvOrDefault(common.EnvCompareSource, config.Data.CompareSource),
		SourceFormat:  getEnvOrDefault(common.EnvSourceFormat, orDefault(config.Data.Format, common.FormatAuto)),
		SeriesName:    getEnvOrDefault(common.EnvSeriesName, orDefault(config.Data.SeriesName, common.DefaultSeriesName)),

		LookBack:      getIntOrDefault(common.EnvLookBack, orDefault(config.Forecast.LookBack, common.DefaultLookBack)),
		Steps:         getIntOrDefault(common.EnvSteps, derefOr(config.Forecast.Steps, common.DefaultSteps)),
		Interval:      time.Duration(getIntOrDefault(common.EnvIntervalMinutes, intervalMinutes)) * time.Minute,
		ForecastStart: start,
		Alignment:     getEnvOrDefault(common.EnvAlignmentPolicy, orDefault(config.Forecast.Alignment, common.DefaultAlignmentPolicy)),
		FillMissing:   getBoolOrDefault(common.EnvFillMissing, config.Forecast.FillMissing),
		MissingValue:  getFloatOrDefault(common.EnvMissingValue, config.Forecast.MissingValue),

		Train: ml.TrainConfig{
			Epochs:                getIntOrDefault(common.EnvEpochs, orDefault(config.Training.Epochs, common.DefaultEpochs)),
			BatchSize:             getIntOrDefault(common.EnvBatchSize, orDefault(config.Training.BatchSize, common.DefaultBatchSize)),
			ValidationSplit:       getFloatOrDefault(common.EnvValidationSplit, derefOr(config.Training.ValidationSplit, common.DefaultValidationSplit)),
			EarlyStoppingPatience: getIntOrDefault(common.EnvEarlyStoppingPatience, derefOr(config.Training.EarlyStoppingPatience, common.DefaultEarlyStoppingPatience)),
			LearningRate:          getFloatOrDefault(common.EnvLearningRate, orDefault(config.Training.LearningRate, common.DefaultLearningRate)),
			Seed:                  getUintOrDefault(common.EnvTrainingSeed, derefOr(config.Training.Seed, common.DefaultTrainingSeed)),
		},

		OutputDir:   getEnvOrDefault(common.EnvOutputDir, orDefault(config.System.OutputDir, common.DefaultOutputDir)),
		DataPath:    getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		MetricsPort: getIntOrDefault(common.EnvMetricsPort, orDefault(config.System.MetricsPort, common.DefaultMetricsPort)),
		HTTPTimeout: getDurationOrDefault(common.EnvHTTPTimeout, httpTimeout),
		LogLevel:    getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	start, err := getTimeFromEnvOrConfig(common.EnvForecastStart, "")
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		Sources:       splitOrDefault(os.Getenv(common.EnvSources), nil),
		CompareSource: os.Getenv(common.EnvCompareSource),
		SourceFormat:  getEnvOrDefault(common.EnvSourceFormat, common.FormatAuto),
		SeriesName:    getEnvOrDefault(common.EnvSeriesName, common.DefaultSeriesName),

		LookBack:      getIntOrDefault(common.EnvLookBack, common.DefaultLookBack),
		Steps:         getIntOrDefault(common.EnvSteps, common.DefaultSteps),
		Interval:      time.Duration(getIntOrDefault(common.EnvIntervalMinutes, common.DefaultIntervalMinutes)) * time.Minute,
		ForecastStart: start,
		Alignment:     getEnvOrDefault(common.EnvAlignmentPolicy, common.DefaultAlignmentPolicy),
		FillMissing:   getBoolOrDefault(common.EnvFillMissing, false),
		MissingValue:  getFloatOrDefault(common.EnvMissingValue, 0),

		Train: ml.TrainConfig{
			Epochs:                getIntOrDefault(common.EnvEpochs, common.DefaultEpochs),
			BatchSize:             getIntOrDefault(common.EnvBatchSize, common.DefaultBatchSize),
			ValidationSplit:       getFloatOrDefault(common.EnvValidationSplit, common.DefaultValidationSplit),
			EarlyStoppingPatience: getIntOrDefault(common.EnvEarlyStoppingPatience, common.DefaultEarlyStoppingPatience),
			LearningRate:          getFloatOrDefault(common.EnvLearningRate, common.DefaultLearningRate),
			Seed:                  getUintOrDefault(common.EnvTrainingSeed, common.DefaultTrainingSeed),
		},

		OutputDir:   getEnvOrDefault(common.EnvOutputDir, common.DefaultOutputDir),
		DataPath:    os.Getenv(common.EnvDataPath), // optional
		MetricsPort: getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		HTTPTimeout: getDurationOrDefault(common.EnvHTTPTimeout, 10*time.Second),
		LogLevel:    getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// RequireSources reports an error when no training source is configured.
func (s *Settings) RequireSources() error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("no training sources configured (set %s or data.sources)", common.EnvSources)
	}
	return nil
}

// PipelineConfig converts the settings into the pipeline configuration.
func (s *Settings) PipelineConfig() (forecast.Config, error) {
	alignment, err := forecast.ParseAlignmentPolicy(s.Alignment)
	if err != nil {
		return forecast.Config{}, err
	}
	return forecast.Config{
		LookBack:     s.LookBack,
		Steps:        s.Steps,
		Interval:     s.Interval,
		Start:        s.ForecastStart,
		Train:        s.Train,
		Alignment:    alignment,
		FillMissing:  s.FillMissing,
		MissingValue: s.MissingValue,
	}, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func derefOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getUintOrDefault(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getListFromEnvOrConfig(key string, configValues []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	return configValues
}

func getTimeFromEnvOrConfig(key, configValue string) (time.Time, error) {
	v := getEnvOrDefault(key, configValue)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("forecast start must be an RFC 3339 timestamp, got %q", v)
	}
	return t, nil
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	switch settings.SourceFormat {
	case common.FormatAuto, common.FormatCSV, common.FormatJSON, common.FormatBoltDB, common.FormatHTTP:
	default:
		return fmt.Errorf("source format must be one of auto, csv, json, boltdb or http, got %q", settings.SourceFormat)
	}
	if settings.SeriesName == "" || strings.Contains(settings.SeriesName, "_") {
		return fmt.Errorf("series name must be non-empty and must not contain '_', got %q", settings.SeriesName)
	}

	// Forecast shape
	if settings.LookBack <= 0 || settings.LookBack > common.MaxLookBack {
		return fmt.Errorf("look back must be between 1 and %d, got %d", common.MaxLookBack, settings.LookBack)
	}
	if settings.Steps < 0 || settings.Steps > common.MaxSteps {
		return fmt.Errorf("steps must be between 0 and %d, got %d", common.MaxSteps, settings.Steps)
	}
	if settings.Interval < time.Minute || settings.Interval > common.MaxIntervalMinutes*time.Minute {
		return fmt.Errorf("interval must be between 1 and %d minutes, got %v", common.MaxIntervalMinutes, settings.Interval)
	}
	if _, err := forecast.ParseAlignmentPolicy(settings.Alignment); err != nil {
		return err
	}

	// Training
	if settings.Train.Epochs <= 0 || settings.Train.Epochs > common.MaxEpochs {
		return fmt.Errorf("epochs must be between 1 and %d, got %d", common.MaxEpochs, settings.Train.Epochs)
	}
	if err := settings.Train.Validate(); err != nil {
		return err
	}

	// System
	if settings.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}
	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", settings.HTTPTimeout)
	}
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
