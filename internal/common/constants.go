package common

// Environment variable keys
const (
	EnvConfigFile            = "CONFIG_FILE"
	EnvSources               = "SOURCES"
	EnvCompareSource         = "COMPARE_SOURCE"
	EnvSourceFormat          = "SOURCE_FORMAT"
	EnvSeriesName            = "SERIES_NAME"
	EnvLookBack              = "LOOK_BACK"
	EnvSteps                 = "STEPS"
	EnvIntervalMinutes       = "INTERVAL_MINUTES"
	EnvForecastStart         = "FORECAST_START"
	EnvEpochs                = "EPOCHS"
	EnvBatchSize             = "BATCH_SIZE"
	EnvValidationSplit       = "VALIDATION_SPLIT"
	EnvEarlyStoppingPatience = "EARLY_STOPPING_PATIENCE"
	EnvLearningRate          = "LEARNING_RATE"
	EnvTrainingSeed          = "TRAINING_SEED"
	EnvAlignmentPolicy       = "ALIGNMENT_POLICY"
	EnvFillMissing           = "FILL_MISSING"
	EnvMissingValue          = "MISSING_VALUE"
	EnvOutputDir             = "OUTPUT_DIR"
	EnvDataPath              = "DATA_PATH"
	EnvMetricsPort           = "METRICS_PORT"
	EnvHTTPTimeout           = "HTTP_TIMEOUT"
	EnvLogLevel              = "LOG_LEVEL"
)

// Configuration defaults. The forecast defaults describe one year of
// 15-minute readings predicted from the previous day.
const (
	DefaultLookBack              = 96
	DefaultSteps                 = 365 * 96
	DefaultIntervalMinutes       = 15
	DefaultEpochs                = 10
	DefaultBatchSize             = 16
	DefaultValidationSplit       = 0.1
	DefaultEarlyStoppingPatience = 3
	DefaultLearningRate          = 0.01
	DefaultTrainingSeed          = 42
	DefaultAlignmentPolicy       = "timestamp"
	DefaultOutputDir             = "out"
	DefaultSeriesName            = "consumption"
	DefaultMetricsPort           = 8080
	DefaultLogLevel              = "info"
)

// Source formats accepted by the loader
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatBoltDB = "boltdb"
	FormatHTTP   = "http"
)

// Output artifact names
const (
	PredictionsFile = "predictions.json"
	ComparisonFile  = "comparison.csv"
	SummaryFile     = "forecast_summary.txt"
	DatabaseFile    = "forecast-data.db"
)

// Validation constants
const (
	MaxLookBack        = 100000
	MaxSteps           = 10 * 366 * 96 // ten years of 15-minute readings
	MaxEpochs          = 100000
	MaxIntervalMinutes = 7 * 24 * 60
	MinMetricsPort     = 1024
	MaxMetricsPort     = 65535
)
