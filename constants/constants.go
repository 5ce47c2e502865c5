package constants

// Source data

const (
	// SourceUrlTemplate expands to the TLC public file for (service, year, month).
	SourceUrlTemplate = "https://d37ci6vzurychx.cloudfront.net/trip-data/%v_tripdata_%04d-%02d.parquet"
	RawArtifactSuffix = ".parquet"
	CanonicalSuffix   = ".gz"   // appended to the raw artifact name once normalized.
	PartSuffix        = ".part" // in-flight download, renamed into place when complete.
	// ColumnOrderMetadataKey holds the frame's column order in the parquet
	// key-value metadata, since parquet group schemas sort fields by name.
	ColumnOrderMetadataKey = "taxipipe.column_order"
)

// Warehouse

const (
	SchemaMonthlyDefault   = "staging"        // monthly partition tables, one table per unit.
	SchemaYearlyDefault    = "trips_data_all" // yearly partition tables, twelve months per table.
	CommitBatchSizeDefault = 100000
	TxtBatchNumRowsDefault = 500 // rows per generated multi-row INSERT.
)

// Pipeline

const (
	WorkersDefault               = 4
	ChanSize                     = 64 // buffer for the task and result channels.
	RetryMaxAttemptsDefault      = 3
	FetchRetryBackoffSecsDefault = 1
	LoadRetryBackoffSecsDefault  = 5
	HttpTimeoutSecsDefault       = 300
	StatsCaptureFrequencySeconds = 5
	DataDirDefault               = "data"
	TimeFormatYearSeconds        = "20060102T150405" // used for human readable run names
	TimeFormatYearSecondsRegex   = "[0-9]{4}[0-9]{2}[0-9]{2}T[0-9]{6}"
	WebServerShutdownTimeoutSecs = 10
	WebServerDefaultPort         = 8080
	ParquetRowBatchSize          = 1024
	ConnectionTypePostgres       = "postgres"
)

// Environment variables.
// The PG_* names match the deployment environments this tool inherits from;
// TP_* names are taxipipe's own overrides.

const (
	EnvVarPrefix       = "TP"
	EnvVarWarehouseUrl = EnvVarPrefix + "_WAREHOUSE_URL"
	EnvVarDataDir      = EnvVarPrefix + "_DATA_DIR"
	EnvVarLogLevel     = EnvVarPrefix + "_LOG_LEVEL"
	EnvVarPgHost       = "PG_HOST"
	EnvVarPgPort       = "PG_PORT"
	EnvVarPgUsername   = "PG_USERNAME"
	EnvVarPgPassword   = "PG_PASSWORD"
	EnvVarPgDatabase   = "PG_DATABASE"
)
