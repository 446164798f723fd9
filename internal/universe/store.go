package universe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optflow/deriv-data/internal/model"
)

// PGRecorder persists instruments on the shared connection pool.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder creates a Recorder backed by the time-series database.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// RecordInstruments inserts any instruments not yet known. Existing rows
// are left untouched; instrument reference data never mutates.
func (r *PGRecorder) RecordInstruments(ctx context.Context, instruments []model.Instrument) error {
	batch := &pgx.Batch{}
	for _, inst := range instruments {
		batch.Queue(`
			INSERT INTO instruments
				(instrument_name, currency, kind, strike, option_type, expiry_ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (instrument_name) DO NOTHING`,
			inst.Name, inst.Currency, string(inst.Kind), inst.Strike, inst.OptionType, inst.ExpiryTS,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("record instruments: %w", err)
		}
	}
	return nil
}
