// Package decode maps raw channel frames to typed domain events. Decoding is
// a pure per-frame mapping: malformed or unknown frames are counted and
// dropped, never fatal, and absent payload fields stay nil so a partial
// update cannot masquerade as an explicit zero.
package decode

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/optflow/deriv-data/internal/model"
)

// ErrUnknownFrame marks frames whose channel or method has no mapping.
var ErrUnknownFrame = errors.New("unknown frame")

// Stats counts decoder outcomes.
type Stats struct {
	Decoded     int64
	ParseErrors int64
	Unknown     int64
}

// Decoder converts raw frames to Results.
type Decoder struct {
	logger *slog.Logger

	decoded     atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
}

// New creates a Decoder.
func New(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Stats returns current counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Decoded:     d.decoded.Load(),
		ParseErrors: d.parseErrors.Load(),
		Unknown:     d.unknown.Load(),
	}
}

// Decode maps one raw frame to a Result. receivedAt is the local receive
// time in ms since epoch and is stamped onto emitted events.
func (d *Decoder) Decode(raw []byte, receivedAt int64) (Result, error) {
	var frame frameWire
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.parseErrors.Add(1)
		d.logger.Warn("failed to parse frame", "error", err)
		return Result{}, err
	}

	switch {
	case frame.Method == "subscription":
		return d.decodeSubscription(frame.Params, receivedAt)

	case frame.Method == "heartbeat":
		var hb heartbeatWire
		if err := json.Unmarshal(frame.Params, &hb); err != nil {
			d.parseErrors.Add(1)
			return Result{}, err
		}
		d.decoded.Add(1)
		return Result{Kind: KindHeartbeat, Heartbeat: &Heartbeat{TestRequest: hb.Type == "test_request"}}, nil

	case frame.Error != nil:
		d.decoded.Add(1)
		notice := &ErrorNotice{Code: frame.Error.Code, Message: frame.Error.Message}
		if frame.ID != nil {
			notice.RequestID = *frame.ID
		}
		return Result{Kind: KindNotice, Notice: notice}, nil

	case frame.ID != nil && frame.Result != nil:
		ack := &SubscriptionAck{RequestID: *frame.ID}
		// Subscribe responses carry the accepted channel list; other
		// request responses (e.g. heartbeat setup) carry scalars.
		if err := json.Unmarshal(frame.Result, &ack.Channels); err != nil {
			ack.Channels = nil
		}
		d.decoded.Add(1)
		return Result{Kind: KindAck, Ack: ack}, nil
	}

	d.unknown.Add(1)
	d.logger.Debug("skipping unknown frame", "method", frame.Method)
	return Result{}, ErrUnknownFrame
}

// decodeSubscription maps a channel data frame.
func (d *Decoder) decodeSubscription(params json.RawMessage, receivedAt int64) (Result, error) {
	var sub subscriptionWire
	if err := json.Unmarshal(params, &sub); err != nil {
		d.parseErrors.Add(1)
		d.logger.Warn("failed to parse subscription params", "error", err)
		return Result{}, err
	}

	switch {
	case strings.HasPrefix(sub.Channel, "ticker."):
		quote, err := d.decodeTicker(sub, receivedAt)
		if err != nil {
			d.parseErrors.Add(1)
			d.logger.Warn("failed to parse ticker", "channel", sub.Channel, "error", err)
			return Result{}, err
		}
		d.decoded.Add(1)
		return Result{Kind: KindQuote, Quote: quote}, nil

	case strings.HasPrefix(sub.Channel, "trades."):
		trades, err := d.decodeTrades(sub, receivedAt)
		if err != nil {
			d.parseErrors.Add(1)
			d.logger.Warn("failed to parse trades", "channel", sub.Channel, "error", err)
			return Result{}, err
		}
		d.decoded.Add(1)
		return Result{Kind: KindTrades, Trades: trades}, nil
	}

	d.unknown.Add(1)
	d.logger.Debug("skipping unknown channel", "channel", sub.Channel)
	return Result{}, ErrUnknownFrame
}

// decodeTicker maps a ticker frame to a stream-sourced quote update.
func (d *Decoder) decodeTicker(sub subscriptionWire, receivedAt int64) (*model.QuoteUpdate, error) {
	var wire tickerWire
	if err := json.Unmarshal(sub.Data, &wire); err != nil {
		return nil, err
	}

	instrument := wire.InstrumentName
	if instrument == "" {
		instrument = channelInstrument(sub.Channel)
	}

	quote := &model.QuoteUpdate{
		Instrument:      instrument,
		TS:              wire.Timestamp,
		ReceivedAt:      receivedAt,
		Source:          model.SourceStream,
		BestBid:         wire.BestBidPrice,
		BestAsk:         wire.BestAskPrice,
		MarkPrice:       wire.MarkPrice,
		UnderlyingPrice: wire.UnderlyingPrice,
		IndexPrice:      wire.IndexPrice,
		LastPrice:       wire.LastPrice,
		OpenInterest:    wire.OpenInterest,
		BidIV:           wire.BidIV,
		AskIV:           wire.AskIV,
		MarkIV:          wire.MarkIV,
		Volatility:      wire.Volatility,
	}

	// A missing greeks object means "not provided", not zero Greeks.
	if wire.Greeks != nil {
		quote.Delta = wire.Greeks.Delta
		quote.Gamma = wire.Greeks.Gamma
		quote.Theta = wire.Greeks.Theta
		quote.Vega = wire.Greeks.Vega
		quote.Rho = wire.Greeks.Rho
	}

	return quote, nil
}

// decodeTrades maps a trades frame to trade events.
func (d *Decoder) decodeTrades(sub subscriptionWire, receivedAt int64) ([]model.TradeEvent, error) {
	var wires []tradeWire
	if err := json.Unmarshal(sub.Data, &wires); err != nil {
		return nil, err
	}

	fallback := channelInstrument(sub.Channel)
	trades := make([]model.TradeEvent, 0, len(wires))
	for _, w := range wires {
		instrument := w.InstrumentName
		if instrument == "" {
			instrument = fallback
		}
		trades = append(trades, model.TradeEvent{
			Instrument:  instrument,
			TradeID:     w.TradeID,
			TS:          w.Timestamp,
			ReceivedAt:  receivedAt,
			Price:       w.Price,
			Amount:      w.Amount,
			Direction:   w.Direction,
			MarkPrice:   w.MarkPrice,
			IndexPrice:  w.IndexPrice,
			IV:          w.IV,
			Liquidation: w.Liquidation != "",
		})
	}

	return trades, nil
}

// channelInstrument extracts the instrument name from a channel like
// "ticker.BTC-PERPETUAL.100ms".
func channelInstrument(channel string) string {
	parts := strings.Split(channel, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
