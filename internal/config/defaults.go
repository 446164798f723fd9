package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://www.deribit.com/api/v2"
	DefaultWSURL              = "wss://www.deribit.com/ws/api/v2"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRateLimit          = 5.0 // requests per second, aggregate
	DefaultRateBurst          = 1
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultMaxInstruments     = 200
	DefaultRefreshInterval    = 1 * time.Hour
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultReadTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultSubscribeBatch     = 50
	DefaultBufferCapacity     = 20000
	DefaultBufferHighWater    = 10000
	DefaultBatchSize          = 1000
	DefaultFlushInterval      = 1 * time.Second
	DefaultWriteRetries       = 3
	DefaultWriteRetryBackoff  = 500 * time.Millisecond
	DefaultSnapshotInterval   = 300 * time.Second
	DefaultResolution         = 1 * time.Minute
	DefaultScanInterval       = 5 * time.Minute
	DefaultLookback           = 24 * time.Hour
	DefaultPageSize           = 500
	DefaultStatusInterval     = 30 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

var (
	// DefaultCurrencies is the instrument universe when none is configured.
	DefaultCurrencies = []string{"BTC", "ETH"}

	// DefaultKinds covers every contract type the collector tracks.
	DefaultKinds = []string{"option", "future", "perpetual"}

	// DefaultChannels are the per-instrument subscription templates.
	DefaultChannels = []string{"ticker.%s.100ms", "trades.%s.100ms"}
)

func (c *CollectorConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Universe defaults
	if len(c.Universe.Currencies) == 0 {
		c.Universe.Currencies = append([]string(nil), DefaultCurrencies...)
	}
	if len(c.Universe.Kinds) == 0 {
		c.Universe.Kinds = append([]string(nil), DefaultKinds...)
	}
	if c.Universe.MaxInstruments == 0 {
		c.Universe.MaxInstruments = DefaultMaxInstruments
	}
	if c.Universe.RefreshInterval == 0 {
		c.Universe.RefreshInterval = DefaultRefreshInterval
	}

	// Stream defaults
	if len(c.Stream.Channels) == 0 {
		c.Stream.Channels = append([]string(nil), DefaultChannels...)
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.SubscribeTimeout == 0 {
		c.Stream.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Stream.SubscribeBatchSize == 0 {
		c.Stream.SubscribeBatchSize = DefaultSubscribeBatch
	}

	// Buffer defaults
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = DefaultBufferCapacity
	}
	if c.Buffer.HighWater == 0 {
		c.Buffer.HighWater = DefaultBufferHighWater
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.MaxRetries == 0 {
		c.Writer.MaxRetries = DefaultWriteRetries
	}
	if c.Writer.RetryBackoff == 0 {
		c.Writer.RetryBackoff = DefaultWriteRetryBackoff
	}

	// Snapshot defaults
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = DefaultSnapshotInterval
	}

	// Backfill defaults
	if c.Backfill.Resolution == 0 {
		c.Backfill.Resolution = DefaultResolution
	}
	if c.Backfill.ScanInterval == 0 {
		c.Backfill.ScanInterval = DefaultScanInterval
	}
	if c.Backfill.Lookback == 0 {
		c.Backfill.Lookback = DefaultLookback
	}
	if c.Backfill.PageSize == 0 {
		c.Backfill.PageSize = DefaultPageSize
	}
	if c.Backfill.MaxRetries == 0 {
		c.Backfill.MaxRetries = DefaultMaxRetries
	}
	if c.Backfill.RetryBackoff == 0 {
		c.Backfill.RetryBackoff = DefaultWriteRetryBackoff
	}

	// Status defaults
	if c.Status.Interval == 0 {
		c.Status.Interval = DefaultStatusInterval
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
