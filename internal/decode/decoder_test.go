package decode

import (
	"testing"

	"github.com/optflow/deriv-data/internal/model"
)

func TestDecodeTickerFull(t *testing.T) {
	raw := []byte(`{
		"jsonrpc":"2.0","method":"subscription","params":{
			"channel":"ticker.BTC-27MAR26-100000-C.100ms",
			"data":{
				"instrument_name":"BTC-27MAR26-100000-C",
				"timestamp":1764588800000,
				"best_bid_price":0.0415,
				"best_ask_price":0.0425,
				"mark_price":0.042,
				"underlying_price":64123.5,
				"index_price":64120.0,
				"last_price":0.0418,
				"open_interest":1532.4,
				"greeks":{"delta":0.31,"gamma":0.00002,"theta":-18.2,"vega":42.1,"rho":11.8},
				"bid_iv":58.2,"ask_iv":60.4,"mark_iv":59.3,"implied_volatility":59.1
			}
		}
	}`)

	d := New(nil)
	res, err := d.Decode(raw, 1764588800123)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Kind != KindQuote {
		t.Fatalf("Kind = %q, want quote", res.Kind)
	}

	q := res.Quote
	if q.Instrument != "BTC-27MAR26-100000-C" {
		t.Errorf("Instrument = %q", q.Instrument)
	}
	if q.TS != 1764588800000 || q.ReceivedAt != 1764588800123 {
		t.Errorf("TS/ReceivedAt = %d/%d", q.TS, q.ReceivedAt)
	}
	if q.Source != model.SourceStream {
		t.Errorf("Source = %q, want stream", q.Source)
	}
	if q.Delta == nil || *q.Delta != 0.31 {
		t.Errorf("Delta = %v, want 0.31", q.Delta)
	}
	if q.MarkIV == nil || *q.MarkIV != 59.3 {
		t.Errorf("MarkIV = %v, want 59.3", q.MarkIV)
	}
	if q.OpenInterest == nil || *q.OpenInterest != 1532.4 {
		t.Errorf("OpenInterest = %v, want 1532.4", q.OpenInterest)
	}
}

func TestDecodeTickerWithoutGreeks(t *testing.T) {
	// Perpetual tickers carry no greeks object; the absent fields must be
	// nil, not zero.
	raw := []byte(`{
		"method":"subscription","params":{
			"channel":"ticker.BTC-PERPETUAL.100ms",
			"data":{"timestamp":1764588800000,"best_bid_price":64000.5,"last_price":64000.0}
		}
	}`)

	d := New(nil)
	res, err := d.Decode(raw, 1764588800050)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	q := res.Quote
	if q.Instrument != "BTC-PERPETUAL" {
		t.Errorf("Instrument = %q, want channel-derived BTC-PERPETUAL", q.Instrument)
	}
	if q.Delta != nil || q.Gamma != nil || q.Theta != nil || q.Vega != nil || q.Rho != nil {
		t.Error("Greeks must be nil when the greeks object is absent")
	}
	if q.MarkPrice != nil {
		t.Error("MarkPrice must be nil when absent")
	}
	if q.BestBid == nil || *q.BestBid != 64000.5 {
		t.Errorf("BestBid = %v, want 64000.5", q.BestBid)
	}
}

func TestDecodeTrades(t *testing.T) {
	raw := []byte(`{
		"method":"subscription","params":{
			"channel":"trades.ETH-PERPETUAL.100ms",
			"data":[
				{"trade_id":"ETH-43690214","timestamp":1764588800000,"price":3120.5,"amount":2.0,"direction":"buy","iv":0},
				{"trade_id":"ETH-43690215","timestamp":1764588800020,"price":3120.0,"amount":1.5,"direction":"sell","liquidation":"T"}
			]
		}
	}`)

	d := New(nil)
	res, err := d.Decode(raw, 1764588800100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Kind != KindTrades {
		t.Fatalf("Kind = %q, want trades", res.Kind)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(res.Trades))
	}

	first := res.Trades[0]
	if first.Instrument != "ETH-PERPETUAL" {
		t.Errorf("Instrument = %q", first.Instrument)
	}
	if first.IV == nil || *first.IV != 0 {
		t.Errorf("IV = %v, want explicit 0 (provided zero is not absent)", first.IV)
	}
	if first.Liquidation {
		t.Error("first trade should not be a liquidation")
	}
	if !res.Trades[1].Liquidation {
		t.Error("second trade should be a liquidation")
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	d := New(nil)

	res, err := d.Decode([]byte(`{"method":"heartbeat","params":{"type":"test_request"}}`), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Kind != KindHeartbeat || !res.Heartbeat.TestRequest {
		t.Errorf("result = %+v, want test_request heartbeat", res)
	}

	res, err = d.Decode([]byte(`{"method":"heartbeat","params":{"type":"heartbeat"}}`), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Heartbeat.TestRequest {
		t.Error("plain heartbeat misread as test_request")
	}
}

func TestDecodeAckAndNotice(t *testing.T) {
	d := New(nil)

	res, err := d.Decode([]byte(`{"id":7,"result":["ticker.BTC-PERPETUAL.100ms"]}`), 0)
	if err != nil {
		t.Fatalf("Decode ack: %v", err)
	}
	if res.Kind != KindAck || res.Ack.RequestID != 7 {
		t.Errorf("ack = %+v", res.Ack)
	}
	if len(res.Ack.Channels) != 1 {
		t.Errorf("ack channels = %v", res.Ack.Channels)
	}

	res, err = d.Decode([]byte(`{"id":8,"error":{"code":-32602,"message":"invalid channel"}}`), 0)
	if err != nil {
		t.Fatalf("Decode notice: %v", err)
	}
	if res.Kind != KindNotice || res.Notice.RequestID != 8 || res.Notice.Code != -32602 {
		t.Errorf("notice = %+v", res.Notice)
	}
}

func TestDecodeMalformedAndUnknown(t *testing.T) {
	d := New(nil)

	if _, err := d.Decode([]byte(`{not json`), 0); err == nil {
		t.Error("malformed frame should error")
	}
	if _, err := d.Decode([]byte(`{"method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms","data":{}}}`), 0); err != ErrUnknownFrame {
		t.Errorf("unknown channel err = %v, want ErrUnknownFrame", err)
	}
	if _, err := d.Decode([]byte(`{"method":"mystery"}`), 0); err != ErrUnknownFrame {
		t.Errorf("unknown method err = %v, want ErrUnknownFrame", err)
	}

	stats := d.Stats()
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
	if stats.Unknown != 2 {
		t.Errorf("Unknown = %d, want 2", stats.Unknown)
	}
	if stats.Decoded != 0 {
		t.Errorf("Decoded = %d, want 0", stats.Decoded)
	}
}
