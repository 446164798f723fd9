package model

// EventKind identifies the persistence target of a buffered event.
type EventKind string

const (
	EventQuote  EventKind = "quote"
	EventTrade  EventKind = "trade"
	EventDepth  EventKind = "depth"
	EventCandle EventKind = "candle"
)

// Event is anything the tick buffer can stage for the batch writer.
type Event interface {
	Kind() EventKind
}

func (QuoteUpdate) Kind() EventKind { return EventQuote }
func (TradeEvent) Kind() EventKind  { return EventTrade }
func (DepthEvent) Kind() EventKind  { return EventDepth }
func (CandleEvent) Kind() EventKind { return EventCandle }

// Float returns a pointer to v. Convenience for building partial updates.
func Float(v float64) *float64 { return &v }
