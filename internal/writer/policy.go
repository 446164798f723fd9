package writer

import (
	"fmt"
	"strings"

	"github.com/optflow/deriv-data/internal/model"
)

// MergeRule decides the winner when both the stored row and an incoming
// update carry a non-null value for the same column.
type MergeRule int

const (
	// FillIfAbsent keeps the stored value; the incoming value only lands
	// in a currently-null column. Protects a captured Greek from being
	// erased by a later REST-only update, and vice versa.
	FillIfAbsent MergeRule = iota

	// LatestWins takes the incoming value.
	LatestWins
)

// quoteColumn binds a quotes table column to its merge rule and the
// QuoteUpdate field that feeds it.
type quoteColumn struct {
	name  string
	rule  MergeRule
	value func(q *model.QuoteUpdate) *float64
	slot  func(q *model.QuoteUpdate) **float64
}

// quotePolicy is the explicit per-field merge table. Quote keys are
// (instrument_name, ts); each source supplies a field subset, so every
// column except the designated latest-wins ones is fill-if-absent to keep
// the merge commutative across sources.
var quotePolicy = []quoteColumn{
	{"best_bid", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.BestBid }, func(q *model.QuoteUpdate) **float64 { return &q.BestBid }},
	{"best_ask", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.BestAsk }, func(q *model.QuoteUpdate) **float64 { return &q.BestAsk }},
	{"mark_price", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.MarkPrice }, func(q *model.QuoteUpdate) **float64 { return &q.MarkPrice }},
	{"underlying_price", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.UnderlyingPrice }, func(q *model.QuoteUpdate) **float64 { return &q.UnderlyingPrice }},
	{"index_price", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.IndexPrice }, func(q *model.QuoteUpdate) **float64 { return &q.IndexPrice }},
	{"last_price", LatestWins, func(q *model.QuoteUpdate) *float64 { return q.LastPrice }, func(q *model.QuoteUpdate) **float64 { return &q.LastPrice }},
	{"open_interest", LatestWins, func(q *model.QuoteUpdate) *float64 { return q.OpenInterest }, func(q *model.QuoteUpdate) **float64 { return &q.OpenInterest }},
	{"delta", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Delta }, func(q *model.QuoteUpdate) **float64 { return &q.Delta }},
	{"gamma", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Gamma }, func(q *model.QuoteUpdate) **float64 { return &q.Gamma }},
	{"theta", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Theta }, func(q *model.QuoteUpdate) **float64 { return &q.Theta }},
	{"vega", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Vega }, func(q *model.QuoteUpdate) **float64 { return &q.Vega }},
	{"rho", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Rho }, func(q *model.QuoteUpdate) **float64 { return &q.Rho }},
	{"bid_iv", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.BidIV }, func(q *model.QuoteUpdate) **float64 { return &q.BidIV }},
	{"ask_iv", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.AskIV }, func(q *model.QuoteUpdate) **float64 { return &q.AskIV }},
	{"mark_iv", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.MarkIV }, func(q *model.QuoteUpdate) **float64 { return &q.MarkIV }},
	{"volatility", FillIfAbsent, func(q *model.QuoteUpdate) *float64 { return q.Volatility }, func(q *model.QuoteUpdate) **float64 { return &q.Volatility }},
}

// quoteUpdateClause renders the ON CONFLICT SET list implementing the
// policy table. Fill-if-absent keeps the stored value first in COALESCE;
// latest-wins prefers the excluded (incoming) value. A null incoming value
// can never overwrite a stored one in either direction.
func quoteUpdateClause() string {
	clauses := make([]string, 0, len(quotePolicy))
	for _, col := range quotePolicy {
		switch col.rule {
		case LatestWins:
			clauses = append(clauses, fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, quotes.%s)", col.name, col.name, col.name))
		default:
			clauses = append(clauses, fmt.Sprintf("%s = COALESCE(quotes.%s, EXCLUDED.%s)", col.name, col.name, col.name))
		}
	}
	return strings.Join(clauses, ", ")
}

// MergeQuotes folds incoming into existing at field granularity and returns
// the merged update. Both inputs must share the (Instrument, TS) key.
// Matches the SQL clause semantics so that pre-merging updates inside one
// batch yields the same stored state as upserting them row by row.
func MergeQuotes(existing, incoming model.QuoteUpdate) model.QuoteUpdate {
	merged := existing
	for _, col := range quotePolicy {
		in := col.value(&incoming)
		if in == nil {
			continue
		}
		slot := col.slot(&merged)
		if *slot == nil || col.rule == LatestWins {
			*slot = in
		}
	}
	if incoming.ReceivedAt > merged.ReceivedAt {
		merged.ReceivedAt = incoming.ReceivedAt
	}
	return merged
}
