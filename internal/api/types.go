package api

import (
	"github.com/optflow/deriv-data/internal/model"
)

// APIInstrument is the wire format for an instrument from get_instruments.
type APIInstrument struct {
	InstrumentName      string  `json:"instrument_name"`
	BaseCurrency        string  `json:"base_currency"`
	Kind                string  `json:"kind"`
	Strike              float64 `json:"strike"`
	OptionType          string  `json:"option_type"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"`
	IsActive            bool    `json:"is_active"`
}

// ToInstrument converts the wire format to the domain type.
func (a APIInstrument) ToInstrument() model.Instrument {
	kind := model.InstrumentKind(a.Kind)
	if a.Kind == "future" && a.ExpirationTimestamp == 0 {
		kind = model.KindPerpetual
	}
	return model.Instrument{
		Name:       a.InstrumentName,
		Currency:   a.BaseCurrency,
		Kind:       kind,
		Strike:     a.Strike,
		OptionType: a.OptionType,
		ExpiryTS:   a.ExpirationTimestamp,
	}
}

// OrderBookResponse is the wire format for get_order_book.
// Price levels arrive as [price, amount] pairs.
type OrderBookResponse struct {
	InstrumentName  string       `json:"instrument_name"`
	Timestamp       int64        `json:"timestamp"` // ms since epoch
	Bids            [][2]float64 `json:"bids"`
	Asks            [][2]float64 `json:"asks"`
	BestBidPrice    *float64     `json:"best_bid_price"`
	BestAskPrice    *float64     `json:"best_ask_price"`
	MarkPrice       *float64     `json:"mark_price"`
	UnderlyingPrice *float64     `json:"underlying_price"`
	IndexPrice      *float64     `json:"index_price"`
	OpenInterest    *float64     `json:"open_interest"`
	LastPrice       *float64     `json:"last_price"`
}

// ToDepthEvent converts the book to a depth snapshot event.
func (o *OrderBookResponse) ToDepthEvent() model.DepthEvent {
	return model.DepthEvent{
		Instrument: o.InstrumentName,
		TS:         o.Timestamp,
		Bids:       toPriceLevels(o.Bids),
		Asks:       toPriceLevels(o.Asks),
	}
}

// ToQuoteUpdate converts the book's top-of-book fields to a REST-sourced
// quote update. Fields the exchange omitted stay nil.
func (o *OrderBookResponse) ToQuoteUpdate(receivedAt int64) model.QuoteUpdate {
	return model.QuoteUpdate{
		Instrument:      o.InstrumentName,
		TS:              o.Timestamp,
		ReceivedAt:      receivedAt,
		Source:          model.SourceREST,
		BestBid:         o.BestBidPrice,
		BestAsk:         o.BestAskPrice,
		MarkPrice:       o.MarkPrice,
		UnderlyingPrice: o.UnderlyingPrice,
		IndexPrice:      o.IndexPrice,
		OpenInterest:    o.OpenInterest,
		LastPrice:       o.LastPrice,
	}
}

func toPriceLevels(raw [][2]float64) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		levels = append(levels, model.PriceLevel{Price: pair[0], Amount: pair[1]})
	}
	return levels
}

// ChartData is the wire format for get_tradingview_chart_data. Parallel
// arrays, one entry per bar.
type ChartData struct {
	Status string    `json:"status"` // "ok" or "no_data"
	Ticks  []int64   `json:"ticks"`  // bar open times (ms since epoch)
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

// Candles converts the parallel arrays to candle events. Bars with
// mismatched array lengths are truncated to the shortest array.
func (d *ChartData) Candles(instrument string) []model.CandleEvent {
	n := len(d.Ticks)
	for _, l := range []int{len(d.Open), len(d.High), len(d.Low), len(d.Close), len(d.Volume)} {
		if l < n {
			n = l
		}
	}

	candles := make([]model.CandleEvent, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, model.CandleEvent{
			Instrument: instrument,
			TS:         d.Ticks[i],
			Open:       d.Open[i],
			High:       d.High[i],
			Low:        d.Low[i],
			Close:      d.Close[i],
			Volume:     d.Volume[i],
		})
	}
	return candles
}
