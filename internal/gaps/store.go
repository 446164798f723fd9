// Package gaps finds holes in persisted candle coverage and closes them by
// paging the history endpoint. Gap state lives in the coverage_gaps table,
// so detection and backfill survive restarts without in-memory progress
// counters.
package gaps

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optflow/deriv-data/internal/model"
)

// Store is the persistence surface for gap tracking.
type Store interface {
	// CandleTimes returns the bar open times persisted for the instrument
	// in [start, end], ascending.
	CandleTimes(ctx context.Context, instrument string, start, end int64) ([]int64, error)

	// RecordGap inserts an open gap. Recording an already-known gap is a
	// no-op; a resolved gap is never reopened.
	RecordGap(ctx context.Context, gap model.CoverageGap) error

	// OpenGaps returns all open gaps, ordered by instrument then start.
	OpenGaps(ctx context.Context) ([]model.CoverageGap, error)

	// ResolveGap transitions a gap to closed or unfillable.
	ResolveGap(ctx context.Context, gap model.CoverageGap, state model.GapState) error
}

// PGStore implements Store on the shared connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Store backed by the time-series database.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CandleTimes(ctx context.Context, instrument string, start, end int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts FROM candles
		WHERE instrument_name = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts`,
		instrument, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query candle times: %w", err)
	}
	defer rows.Close()

	var times []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan candle time: %w", err)
		}
		times = append(times, ts)
	}
	return times, rows.Err()
}

func (s *PGStore) RecordGap(ctx context.Context, gap model.CoverageGap) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coverage_gaps (instrument_name, gap_start, gap_end, state, detected_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instrument_name, gap_start, gap_end) DO NOTHING`,
		gap.Instrument, gap.GapStart, gap.GapEnd, string(model.GapOpen), gap.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("record gap: %w", err)
	}
	return nil
}

func (s *PGStore) OpenGaps(ctx context.Context) ([]model.CoverageGap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instrument_name, gap_start, gap_end, state, detected_at
		FROM coverage_gaps
		WHERE state = $1
		ORDER BY instrument_name, gap_start`,
		string(model.GapOpen),
	)
	if err != nil {
		return nil, fmt.Errorf("query open gaps: %w", err)
	}
	defer rows.Close()

	var gaps []model.CoverageGap
	for rows.Next() {
		var g model.CoverageGap
		var state string
		if err := rows.Scan(&g.Instrument, &g.GapStart, &g.GapEnd, &state, &g.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan gap: %w", err)
		}
		g.State = model.GapState(state)
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

func (s *PGStore) ResolveGap(ctx context.Context, gap model.CoverageGap, state model.GapState) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE coverage_gaps
		SET state = $4, resolved_at = $5
		WHERE instrument_name = $1 AND gap_start = $2 AND gap_end = $3`,
		gap.Instrument, gap.GapStart, gap.GapEnd, string(state), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("resolve gap: %w", err)
	}
	return nil
}
