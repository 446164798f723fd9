// Package api provides the exchange REST client used for instrument
// discovery, full order-book depth and historical OHLCV backfill.
//
// All requests pass through the shared rate limiter before leaving the
// process, so the aggregate request rate across every caller stays under the
// configured ceiling.
//
// Endpoints (Deribit-style public API):
//   - /public/get_instruments
//   - /public/get_order_book
//   - /public/get_tradingview_chart_data
package api
