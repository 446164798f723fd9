// Package status publishes per-currency collector heartbeats to the
// collector_status table so external checks can tell a healthy collector
// from a wedged one without scraping logs.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optflow/deriv-data/internal/model"
	"github.com/optflow/deriv-data/internal/stream"
)

// Source exposes one currency's connection status.
type Source interface {
	Status() stream.Status
}

// Store persists heartbeat rows.
type Store interface {
	UpsertStatus(ctx context.Context, status model.CollectorStatus) error
}

// PGStore implements Store on the shared connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Store backed by the time-series database.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) UpsertStatus(ctx context.Context, status model.CollectorStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collector_status
			(currency, session_id, connection_state, subscribed_channels, last_message_ts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (currency) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			connection_state = EXCLUDED.connection_state,
			subscribed_channels = EXCLUDED.subscribed_channels,
			last_message_ts = EXCLUDED.last_message_ts,
			updated_at = EXCLUDED.updated_at`,
		status.Currency,
		status.SessionID.String(),
		status.ConnectionState,
		status.SubscribedChannels,
		status.LastMessageTS,
		status.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", status.Currency, err)
	}
	return nil
}

// Config holds reporter configuration.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Reporter periodically snapshots every source and upserts one row per
// currency, all under one session id for the process lifetime.
type Reporter struct {
	cfg     Config
	store   Store
	sources []Source
	session uuid.UUID
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Reporter.
func New(cfg Config, store Store, sources []Source, session uuid.UUID, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		cfg:     cfg,
		store:   store,
		sources: sources,
		session: session,
		logger:  logger,
	}
}

// Start begins the heartbeat loop.
func (r *Reporter) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("status reporter started",
		"interval", r.cfg.Interval,
		"session_id", r.session,
	)

	return nil
}

// Stop gracefully shuts down. A final report goes out so the table reflects
// the shutdown rather than a stale streaming state.
func (r *Reporter) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.reportAll(ctx)
	r.logger.Info("status reporter stopped")
	return nil
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.reportAll(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reportAll(r.ctx)
		}
	}
}

// reportAll upserts one row per source. One currency failing never blocks
// the others.
func (r *Reporter) reportAll(ctx context.Context) {
	now := time.Now().UnixMilli()

	for _, source := range r.sources {
		s := source.Status()
		row := model.CollectorStatus{
			Currency:           s.Currency,
			SessionID:          r.session,
			ConnectionState:    string(s.State),
			SubscribedChannels: s.SubscribedChannels,
			LastMessageTS:      s.LastMessageTS,
			UpdatedAt:          now,
		}
		if err := r.store.UpsertStatus(ctx, row); err != nil {
			r.logger.Warn("failed to report status", "currency", s.Currency, "error", err)
		}
	}
}
