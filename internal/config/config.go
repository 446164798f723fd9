package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Universe UniverseConfig `yaml:"universe"`
	Stream   StreamConfig   `yaml:"stream"`
	Buffer   BufferConfig   `yaml:"buffer"`
	Writer   WriterConfig   `yaml:"writer"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Backfill BackfillConfig `yaml:"backfill"`
	Status   StatusConfig   `yaml:"status"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds upstream exchange API settings. RateLimit is the aggregate
// ceiling across every REST-issuing component, not a per-caller budget.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second
	RateBurst  int           `yaml:"rate_burst"`
}

// DatabaseConfig holds the time-series store connection.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// UniverseConfig controls instrument discovery.
type UniverseConfig struct {
	Currencies      []string      `yaml:"currencies"`
	Kinds           []string      `yaml:"kinds"`
	MaxInstruments  int           `yaml:"max_instruments"` // per currency
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// StreamConfig holds WebSocket connection manager settings.
type StreamConfig struct {
	Channels           []string      `yaml:"channels"` // channel templates, e.g. "ticker.%s.100ms"
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	ReadTimeout        time.Duration `yaml:"read_timeout"` // liveness: max silence before forced reconnect
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	SubscribeBatchSize int           `yaml:"subscribe_batch_size"`
}

// BufferConfig holds tick buffer settings.
type BufferConfig struct {
	Capacity  int `yaml:"capacity"`
	HighWater int `yaml:"high_water"` // occupancy that triggers an early flush
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// SnapshotConfig holds depth snapshot fetcher settings.
type SnapshotConfig struct {
	Interval time.Duration `yaml:"interval"`
	Depth    int           `yaml:"depth"` // levels per side, 0 = full book
}

// BackfillConfig holds gap detection and backfill settings.
type BackfillConfig struct {
	Resolution   time.Duration `yaml:"resolution"` // expected candle cadence
	ScanInterval time.Duration `yaml:"scan_interval"`
	Lookback     time.Duration `yaml:"lookback"`
	PageSize     int           `yaml:"page_size"` // candles per history request
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StatusConfig holds heartbeat reporter settings.
type StatusConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
