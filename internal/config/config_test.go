package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-collector
api:
  rest_url: https://test.deribit.com/api/v2
  rate_limit: 10
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
universe:
  currencies: [BTC]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-collector" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-collector")
	}
	if cfg.API.RestURL != "https://test.deribit.com/api/v2" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://test.deribit.com/api/v2")
	}
	if cfg.API.RateLimit != 10 {
		t.Errorf("API.RateLimit = %v, want 10", cfg.API.RateLimit)
	}
	if len(cfg.Universe.Currencies) != 1 || cfg.Universe.Currencies[0] != "BTC" {
		t.Errorf("Universe.Currencies = %v, want [BTC]", cfg.Universe.Currencies)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-collector
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-collector
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.RateLimit != DefaultRateLimit {
		t.Errorf("API.RateLimit = %v, want default %v", cfg.API.RateLimit, DefaultRateLimit)
	}
	if cfg.Snapshot.Interval != DefaultSnapshotInterval {
		t.Errorf("Snapshot.Interval = %v, want default %v", cfg.Snapshot.Interval, DefaultSnapshotInterval)
	}
	if cfg.Backfill.Resolution != DefaultResolution {
		t.Errorf("Backfill.Resolution = %v, want default %v", cfg.Backfill.Resolution, DefaultResolution)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if len(cfg.Stream.Channels) != len(DefaultChannels) {
		t.Errorf("Stream.Channels = %v, want defaults %v", cfg.Stream.Channels, DefaultChannels)
	}
}

func TestValidate(t *testing.T) {
	valid := func() CollectorConfig {
		cfg := CollectorConfig{
			Instance: InstanceConfig{ID: "test"},
			Database: DatabaseConfig{
				Timescale: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
			},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*CollectorConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *CollectorConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *CollectorConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing database host",
			mutate:  func(c *CollectorConfig) { c.Database.Timescale.Host = "" },
			wantErr: "database.timescale.host is required",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *CollectorConfig) { c.API.RateLimit = -1 },
			wantErr: "api.rate_limit must be > 0",
		},
		{
			name:    "unknown instrument kind",
			mutate:  func(c *CollectorConfig) { c.Universe.Kinds = []string{"swap"} },
			wantErr: `universe.kinds contains unknown kind "swap"`,
		},
		{
			name: "backoff bounds inverted",
			mutate: func(c *CollectorConfig) {
				c.Stream.ReconnectBaseDelay = time.Minute
				c.Stream.ReconnectMaxDelay = time.Second
			},
			wantErr: "stream.reconnect_base_delay (1m0s) cannot exceed reconnect_max_delay (1s)",
		},
		{
			name:    "high water above capacity",
			mutate:  func(c *CollectorConfig) { c.Buffer.Capacity = 10; c.Buffer.HighWater = 20 },
			wantErr: "buffer.high_water (20) must be between 1 and capacity (10)",
		},
		{
			name:    "lookback below resolution",
			mutate:  func(c *CollectorConfig) { c.Backfill.Lookback = time.Second },
			wantErr: "backfill.lookback (1s) must cover at least one resolution period (1m0s)",
		},
		{
			name:    "bad log level",
			mutate:  func(c *CollectorConfig) { c.Log.Level = "verbose" },
			wantErr: `log.level must be one of debug/info/warn/error, got "verbose"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
