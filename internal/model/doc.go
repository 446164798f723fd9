// Package model defines shared data types used across the collector.
//
// Conventions:
//   - Prices, sizes, Greeks and IV values: float64 as delivered by the exchange
//   - Timestamps: int64 milliseconds since Unix epoch
//   - IDs: string instrument names, string trade IDs, uuid.UUID session IDs
//
// Quote fields that may be absent from a given update are pointers; nil means
// "not provided by this source", which is distinct from an explicit zero.
package model
