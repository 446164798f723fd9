package writer

import "time"

// Config holds batch writer settings.
type Config struct {
	BatchSize     int           // Max rows per sub-batch (and per upsert statement group)
	FlushInterval time.Duration // Wall-clock flush cadence
	MaxRetries    int           // Retries per failed sub-batch
	RetryBackoff  time.Duration // Base backoff between retries (doubles per attempt)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: time.Second,
		MaxRetries:    3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Metrics contains writer counters.
type Metrics struct {
	Flushes     int64
	Rows        int64 // rows successfully written (including conflict no-ops)
	Conflicts   int64 // rows that hit DO NOTHING conflicts
	Errors      int64 // sub-batches that exhausted retries
	SkippedRows int64 // rows lost to exhausted sub-batches
}
