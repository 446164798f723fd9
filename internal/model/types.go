package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Reference Types
// -----------------------------------------------------------------------------

// InstrumentKind classifies a tradeable contract.
type InstrumentKind string

const (
	KindOption    InstrumentKind = "option"
	KindFuture    InstrumentKind = "future"
	KindPerpetual InstrumentKind = "perpetual"
)

// Instrument represents a tradeable derivative contract.
// Instruments are immutable once observed.
type Instrument struct {
	Name       string         // Primary key (e.g., "BTC-27MAR26-100000-C")
	Currency   string         // Underlying currency (e.g., "BTC")
	Kind       InstrumentKind // option, future, perpetual
	Strike     float64        // Strike price (options only, 0 otherwise)
	OptionType string         // "call", "put", or "" for non-options
	ExpiryTS   int64          // Expiration time (ms since epoch), 0 for perpetuals
}

// IsOption reports whether the instrument is an option contract.
func (i Instrument) IsOption() bool { return i.Kind == KindOption }

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// QuoteSource identifies which upstream produced a quote update.
type QuoteSource string

const (
	SourceStream QuoteSource = "stream" // WebSocket ticker channel
	SourceREST   QuoteSource = "rest"   // REST book summary / snapshot path
)

// QuoteUpdate is a partial update to the quote row keyed by (Instrument, TS).
// Each source supplies only its own field subset; nil fields are "not provided"
// and must never erase a value the other source already persisted.
type QuoteUpdate struct {
	Instrument string
	TS         int64 // Exchange timestamp (ms since epoch)
	ReceivedAt int64 // Local receive timestamp (ms since epoch)
	Source     QuoteSource

	// Price fields (REST and stream)
	BestBid         *float64
	BestAsk         *float64
	MarkPrice       *float64
	UnderlyingPrice *float64
	IndexPrice      *float64
	LastPrice       *float64
	OpenInterest    *float64

	// Greeks (stream ticker only)
	Delta *float64
	Gamma *float64
	Theta *float64
	Vega  *float64
	Rho   *float64

	// Implied volatility (stream ticker only)
	BidIV      *float64
	AskIV      *float64
	MarkIV     *float64
	Volatility *float64
}

// TradeEvent is an executed trade. Append-only; duplicates by
// (Instrument, TradeID) are ignored, never merged.
type TradeEvent struct {
	Instrument  string
	TradeID     string // Exchange trade ID (e.g., "ETH-43690214")
	TS          int64  // Exchange timestamp (ms since epoch)
	ReceivedAt  int64  // Local receive timestamp (ms since epoch)
	Price       float64
	Amount      float64
	Direction   string // "buy" or "sell" (taker side)
	MarkPrice   *float64
	IndexPrice  *float64
	IV          *float64
	Liquidation bool
}

// PriceLevel is one rung of an order-book ladder.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// DepthEvent is a full order-book snapshot keyed by (Instrument, TS).
type DepthEvent struct {
	Instrument string
	TS         int64 // Snapshot timestamp (ms since epoch)
	Bids       []PriceLevel
	Asks       []PriceLevel
}

// CandleEvent is one OHLCV bar, produced by historical backfill.
type CandleEvent struct {
	Instrument string
	TS         int64 // Bar open time (ms since epoch)
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// -----------------------------------------------------------------------------
// Coverage & Status Types
// -----------------------------------------------------------------------------

// GapState tracks the lifecycle of a coverage gap.
type GapState string

const (
	GapOpen       GapState = "open"
	GapClosed     GapState = "closed"
	GapUnfillable GapState = "unfillable" // instrument delisted / history unavailable
)

// CoverageGap records a time range for an instrument where expected candles
// are missing from storage. Keyed by (Instrument, GapStart, GapEnd).
type CoverageGap struct {
	Instrument string
	GapStart   int64 // First missing bar time (ms since epoch, inclusive)
	GapEnd     int64 // Last missing bar time (ms since epoch, inclusive)
	State      GapState
	DetectedAt int64
	ResolvedAt int64 // 0 while open
}

// Periods returns the number of expected bars inside the gap at the given
// resolution.
func (g CoverageGap) Periods(resolution int64) int64 {
	if resolution <= 0 || g.GapEnd < g.GapStart {
		return 0
	}
	return (g.GapEnd-g.GapStart)/resolution + 1
}

// CollectorStatus is the per-currency heartbeat row used by external
// liveness checks.
type CollectorStatus struct {
	Currency           string
	SessionID          uuid.UUID
	ConnectionState    string
	SubscribedChannels int
	LastMessageTS      int64 // ms since epoch, 0 if nothing received yet
	UpdatedAt          int64
}
