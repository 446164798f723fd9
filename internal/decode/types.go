package decode

import (
	"encoding/json"

	"github.com/optflow/deriv-data/internal/model"
)

// ResultKind identifies what a raw frame decoded into.
type ResultKind string

const (
	KindQuote     ResultKind = "quote"
	KindTrades    ResultKind = "trades"
	KindHeartbeat ResultKind = "heartbeat"
	KindAck       ResultKind = "ack"
	KindNotice    ResultKind = "notice"
)

// Result is one decoded frame. Exactly one payload field is set, selected
// by Kind.
type Result struct {
	Kind ResultKind

	Quote     *model.QuoteUpdate
	Trades    []model.TradeEvent
	Heartbeat *Heartbeat
	Ack       *SubscriptionAck
	Notice    *ErrorNotice
}

// Heartbeat is a server liveness frame. TestRequest heartbeats require a
// test reply on the same connection.
type Heartbeat struct {
	TestRequest bool
}

// SubscriptionAck confirms which channels a subscribe request established.
type SubscriptionAck struct {
	RequestID int64
	Channels  []string
}

// ErrorNotice is an error frame tied to a request.
type ErrorNotice struct {
	RequestID int64
	Code      int
	Message   string
}

// Wire types for JSON parsing

// frameWire is the outer envelope of every inbound frame.
type frameWire struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// subscriptionWire is the params payload of a subscription frame.
type subscriptionWire struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// heartbeatWire is the params payload of a heartbeat frame.
type heartbeatWire struct {
	Type string `json:"type"` // "heartbeat" or "test_request"
}

// greeksWire is the nested Greeks object of a ticker frame. The whole
// object may be absent (non-options carry no Greeks).
type greeksWire struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	Rho   *float64 `json:"rho"`
}

// tickerWire is the data payload of a ticker channel frame. Every value
// field is a pointer: absent means "not provided", never zero.
type tickerWire struct {
	InstrumentName  string      `json:"instrument_name"`
	Timestamp       int64       `json:"timestamp"` // ms since epoch
	BestBidPrice    *float64    `json:"best_bid_price"`
	BestAskPrice    *float64    `json:"best_ask_price"`
	MarkPrice       *float64    `json:"mark_price"`
	UnderlyingPrice *float64    `json:"underlying_price"`
	IndexPrice      *float64    `json:"index_price"`
	LastPrice       *float64    `json:"last_price"`
	OpenInterest    *float64    `json:"open_interest"`
	Greeks          *greeksWire `json:"greeks"`
	BidIV           *float64    `json:"bid_iv"`
	AskIV           *float64    `json:"ask_iv"`
	MarkIV          *float64    `json:"mark_iv"`
	Volatility      *float64    `json:"implied_volatility"`
}

// tradeWire is one element of a trades channel frame.
type tradeWire struct {
	TradeID        string   `json:"trade_id"`
	InstrumentName string   `json:"instrument_name"`
	Timestamp      int64    `json:"timestamp"` // ms since epoch
	Price          float64  `json:"price"`
	Amount         float64  `json:"amount"`
	Direction      string   `json:"direction"`
	MarkPrice      *float64 `json:"mark_price"`
	IndexPrice     *float64 `json:"index_price"`
	IV             *float64 `json:"iv"`
	Liquidation    string   `json:"liquidation"` // "T"/"M"/"TM" when forced, absent otherwise
}
