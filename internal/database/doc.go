// Package database provides connection pool management for the TimescaleDB
// time-series store holding quotes, trades, candles, depth snapshots,
// coverage gaps and collector status.
package database
