// Package writer drains the tick buffer and persists events with idempotent
// multi-row upserts. Quote rows merge at field granularity under the policy
// table in policy.go; trades and depth snapshots are append-only. Failed
// sub-batches retry with backoff and are then skipped, so one bad sub-batch
// never blocks the rest of a flush.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optflow/deriv-data/internal/buffer"
	"github.com/optflow/deriv-data/internal/model"
)

// quoteKey identifies a quote row.
type quoteKey struct {
	instrument string
	ts         int64
}

// Writer consumes the tick buffer and writes to the time-series store.
type Writer struct {
	cfg    Config
	input  *buffer.Buffer[model.Event]
	db     *pgxpool.Pool
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics Metrics
}

// New creates a Writer.
func New(cfg Config, input *buffer.Buffer[model.Event], db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
	}
}

// Start begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("batch writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer, draining and flushing whatever is buffered.
// The final flush uses the passed context so shutdown has its own deadline.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping batch writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("batch writer stop timed out")
	}

	// Final drain: events enqueued after the loop exited must not be lost.
	w.flush(ctx)

	w.logger.Info("batch writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// flushLoop flushes on the wall-clock interval or when the buffer crosses
// its high-water mark, whichever comes first.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		case <-w.input.FlushSignal():
			w.flush(w.ctx)
		}
	}
}

// flush drains the buffer and writes each table group.
func (w *Writer) flush(ctx context.Context) {
	events := w.input.Drain()
	if len(events) == 0 {
		return
	}

	start := time.Now()
	quotes, trades, depths, candles := groupEvents(events)

	// Each table group commits independently; a failure in one never
	// rolls back the others.
	w.writeQuotes(ctx, quotes)
	w.writeTrades(ctx, trades)
	w.writeDepths(ctx, depths)
	w.writeCandles(ctx, candles)

	w.mu.Lock()
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("flush complete",
		"events", len(events),
		"quotes", len(quotes),
		"trades", len(trades),
		"depths", len(depths),
		"candles", len(candles),
		"duration", time.Since(start),
	)
}

// groupEvents splits a drained batch by target table. Quote updates sharing
// a key are pre-merged under the field policy so each flush carries at most
// one row per key; the SQL clause applies the same policy against stored
// state, keeping the two paths equivalent.
func groupEvents(events []model.Event) (map[quoteKey]model.QuoteUpdate, []model.TradeEvent, []model.DepthEvent, []model.CandleEvent) {
	quotes := make(map[quoteKey]model.QuoteUpdate)
	var trades []model.TradeEvent
	var depths []model.DepthEvent
	var candles []model.CandleEvent

	for _, ev := range events {
		switch e := ev.(type) {
		case model.QuoteUpdate:
			key := quoteKey{e.Instrument, e.TS}
			if existing, ok := quotes[key]; ok {
				quotes[key] = MergeQuotes(existing, e)
			} else {
				quotes[key] = e
			}
		case model.TradeEvent:
			trades = append(trades, e)
		case model.DepthEvent:
			depths = append(depths, e)
		case model.CandleEvent:
			candles = append(candles, e)
		}
	}

	return quotes, trades, depths, candles
}

// writeQuotes upserts quote rows with field-level merge.
func (w *Writer) writeQuotes(ctx context.Context, quotes map[quoteKey]model.QuoteUpdate) {
	if len(quotes) == 0 {
		return
	}

	sql := `
		INSERT INTO quotes (instrument_name, ts, best_bid, best_ask, mark_price, underlying_price, index_price, last_price, open_interest, delta, gamma, theta, vega, rho, bid_iv, ask_iv, mark_iv, volatility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (instrument_name, ts) DO UPDATE SET ` + quoteUpdateClause()

	rows := make([]model.QuoteUpdate, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, q)
	}

	w.writeSubBatches(ctx, "quotes", len(rows), func(lo, hi int) *pgx.Batch {
		batch := &pgx.Batch{}
		for _, q := range rows[lo:hi] {
			batch.Queue(sql,
				q.Instrument, q.TS,
				q.BestBid, q.BestAsk, q.MarkPrice, q.UnderlyingPrice, q.IndexPrice,
				q.LastPrice, q.OpenInterest,
				q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho,
				q.BidIV, q.AskIV, q.MarkIV, q.Volatility,
			)
		}
		return batch
	})
}

// writeTrades appends trade rows; duplicates by (instrument, trade_id) are
// no-ops.
func (w *Writer) writeTrades(ctx context.Context, trades []model.TradeEvent) {
	if len(trades) == 0 {
		return
	}

	sql := `
		INSERT INTO trades (instrument_name, trade_id, ts, price, amount, direction, mark_price, index_price, iv, liquidation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (instrument_name, trade_id) DO NOTHING`

	w.writeSubBatches(ctx, "trades", len(trades), func(lo, hi int) *pgx.Batch {
		batch := &pgx.Batch{}
		for _, t := range trades[lo:hi] {
			batch.Queue(sql,
				t.Instrument, t.TradeID, t.TS, t.Price, t.Amount, t.Direction,
				t.MarkPrice, t.IndexPrice, t.IV, t.Liquidation,
			)
		}
		return batch
	})
}

// writeDepths stores order-book ladders as JSON.
func (w *Writer) writeDepths(ctx context.Context, depths []model.DepthEvent) {
	if len(depths) == 0 {
		return
	}

	sql := `
		INSERT INTO depth_snapshots (instrument_name, ts, bids, asks)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_name, ts) DO NOTHING`

	w.writeSubBatches(ctx, "depth_snapshots", len(depths), func(lo, hi int) *pgx.Batch {
		batch := &pgx.Batch{}
		for _, d := range depths[lo:hi] {
			bids, asks := marshalLadder(d.Bids), marshalLadder(d.Asks)
			batch.Queue(sql, d.Instrument, d.TS, bids, asks)
		}
		return batch
	})
}

// writeCandles upserts OHLCV bars. Re-running backfill over a filled range
// rewrites identical values, so the upsert stays idempotent.
func (w *Writer) writeCandles(ctx context.Context, candles []model.CandleEvent) {
	if len(candles) == 0 {
		return
	}

	sql := `
		INSERT INTO candles (instrument_name, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_name, ts) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`

	w.writeSubBatches(ctx, "candles", len(candles), func(lo, hi int) *pgx.Batch {
		batch := &pgx.Batch{}
		for _, c := range candles[lo:hi] {
			batch.Queue(sql, c.Instrument, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		return batch
	})
}

// writeSubBatches chunks n rows into sub-batches of BatchSize and writes
// each in its own transaction with bounded retries. An exhausted sub-batch
// is logged and skipped; the remaining sub-batches still commit.
func (w *Writer) writeSubBatches(ctx context.Context, table string, n int, build func(lo, hi int) *pgx.Batch) {
	for lo := 0; lo < n; lo += w.cfg.BatchSize {
		hi := lo + w.cfg.BatchSize
		if hi > n {
			hi = n
		}

		err := w.withRetry(ctx, func() error {
			return w.execBatch(ctx, build(lo, hi))
		})
		if err != nil {
			w.logger.Error("sub-batch failed, skipping",
				"table", table,
				"rows", hi-lo,
				"error", err,
			)
			w.mu.Lock()
			w.metrics.Errors++
			w.metrics.SkippedRows += int64(hi - lo)
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		w.metrics.Rows += int64(hi - lo)
		w.mu.Unlock()
	}
}

// execBatch runs one sub-batch inside a transaction so the table group's
// merge semantics stay atomic.
func (w *Writer) execBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var conflicts int64
	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("exec row %d: %w", i, err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	w.mu.Lock()
	w.metrics.Conflicts += conflicts
	w.mu.Unlock()
	return nil
}

// withRetry runs fn up to MaxRetries+1 times with doubling backoff.
func (w *Writer) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := w.cfg.RetryBackoff

	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}

	return lastErr
}

// marshalLadder renders price levels as the JSON stored in jsonb columns.
func marshalLadder(levels []model.PriceLevel) []byte {
	if levels == nil {
		levels = []model.PriceLevel{}
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return []byte("[]")
	}
	return data
}
