package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.API.RateLimit <= 0 {
		return errors.New("api.rate_limit must be > 0")
	}
	if c.API.RateBurst < 1 {
		return errors.New("api.rate_burst must be >= 1")
	}

	if len(c.Universe.Currencies) == 0 {
		return errors.New("universe.currencies must not be empty")
	}
	for _, kind := range c.Universe.Kinds {
		switch kind {
		case "option", "future", "perpetual":
		default:
			return fmt.Errorf("universe.kinds contains unknown kind %q", kind)
		}
	}
	if c.Universe.MaxInstruments < 1 {
		return errors.New("universe.max_instruments must be >= 1")
	}

	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}
	if c.Stream.SubscribeBatchSize < 1 {
		return errors.New("stream.subscribe_batch_size must be >= 1")
	}

	if c.Buffer.Capacity < 1 {
		return errors.New("buffer.capacity must be >= 1")
	}
	if c.Buffer.HighWater < 1 || c.Buffer.HighWater > c.Buffer.Capacity {
		return fmt.Errorf("buffer.high_water (%d) must be between 1 and capacity (%d)",
			c.Buffer.HighWater, c.Buffer.Capacity)
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.MaxRetries < 0 {
		return errors.New("writer.max_retries must be >= 0")
	}

	if c.Backfill.Resolution <= 0 {
		return errors.New("backfill.resolution must be > 0")
	}
	if c.Backfill.Lookback < c.Backfill.Resolution {
		return fmt.Errorf("backfill.lookback (%v) must cover at least one resolution period (%v)",
			c.Backfill.Lookback, c.Backfill.Resolution)
	}
	if c.Backfill.PageSize < 1 {
		return errors.New("backfill.page_size must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
