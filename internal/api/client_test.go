package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/optflow/deriv-data/internal/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.New(1000, 1000) // effectively unlimited for tests
}

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", testLimiter())

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		c := NewClient("https://api.example.com", testLimiter(),
			WithTimeout(5*time.Second),
			WithRetries(5, 2*time.Second),
		)
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})
}

func TestGetInstruments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/public/get_instruments" {
			t.Errorf("path = %q", got)
		}
		if got := r.URL.Query().Get("currency"); got != "BTC" {
			t.Errorf("currency = %q, want BTC", got)
		}
		if got := r.URL.Query().Get("expired"); got != "false" {
			t.Errorf("expired = %q, want false", got)
		}
		w.Write([]byte(`{"result":[
			{"instrument_name":"BTC-27MAR26-100000-C","base_currency":"BTC","kind":"option","strike":100000,"option_type":"call","expiration_timestamp":1774598400000,"is_active":true},
			{"instrument_name":"BTC-PERPETUAL","base_currency":"BTC","kind":"future","expiration_timestamp":0,"is_active":true}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter())
	instruments, err := c.GetInstruments(context.Background(), "BTC", "")
	if err != nil {
		t.Fatalf("GetInstruments: %v", err)
	}
	if len(instruments) != 2 {
		t.Fatalf("len = %d, want 2", len(instruments))
	}

	opt := instruments[0].ToInstrument()
	if opt.Kind != "option" || opt.Strike != 100000 || opt.OptionType != "call" {
		t.Errorf("option conversion wrong: %+v", opt)
	}

	perp := instruments[1].ToInstrument()
	if perp.Kind != "perpetual" {
		t.Errorf("future without expiry should convert to perpetual, got %q", perp.Kind)
	}
}

func TestGetOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instrument_name"); got != "BTC-PERPETUAL" {
			t.Errorf("instrument_name = %q", got)
		}
		w.Write([]byte(`{"result":{
			"instrument_name":"BTC-PERPETUAL",
			"timestamp":1764588800000,
			"bids":[[64000.5,10],[64000.0,3]],
			"asks":[[64001.0,5]],
			"best_bid_price":64000.5,
			"best_ask_price":64001.0,
			"mark_price":64000.7,
			"index_price":64000.9
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter())
	book, err := c.GetOrderBook(context.Background(), "BTC-PERPETUAL", 0)
	if err != nil {
		t.Fatalf("GetOrderBook: %v", err)
	}

	depth := book.ToDepthEvent()
	if len(depth.Bids) != 2 || len(depth.Asks) != 1 {
		t.Errorf("depth levels = %d/%d, want 2/1", len(depth.Bids), len(depth.Asks))
	}
	if depth.Bids[0].Price != 64000.5 || depth.Bids[0].Amount != 10 {
		t.Errorf("top bid = %+v", depth.Bids[0])
	}

	quote := book.ToQuoteUpdate(1764588800500)
	if quote.BestBid == nil || *quote.BestBid != 64000.5 {
		t.Errorf("BestBid = %v, want 64000.5", quote.BestBid)
	}
	if quote.UnderlyingPrice != nil {
		t.Error("UnderlyingPrice should be nil when the exchange omits it")
	}
	if quote.Delta != nil {
		t.Error("REST quote must not carry Greek fields")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), WithRetries(3, time.Millisecond))
	if _, err := c.GetInstruments(context.Background(), "BTC", "option"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":-32602,"message":"instrument_not_found"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), WithRetries(3, time.Millisecond))
	_, err := c.GetOrderBook(context.Background(), "BTC-GONE", 0)
	if !errors.Is(err, ErrInstrumentNotFound) {
		t.Fatalf("err = %v, want ErrInstrumentNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (not-found must not retry)", calls.Load())
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       APIError
		retryable bool
		notFound  bool
	}{
		{"rate limited", APIError{StatusCode: 429}, true, false},
		{"server error", APIError{StatusCode: 503}, true, false},
		{"bad request", APIError{StatusCode: 400}, false, false},
		{"http 404", APIError{StatusCode: 404}, false, true},
		{"exchange not found", APIError{StatusCode: 400, Message: "instrument_not_found"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := tt.err.IsNotFound(); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
		})
	}
}

func TestGetCandleRangePaging(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("start_timestamp"))
		if r.URL.Query().Get("resolution") != "1" {
			t.Errorf("resolution = %q, want 1", r.URL.Query().Get("resolution"))
		}
		w.Write([]byte(`{"result":{
			"status":"ok",
			"ticks":[0,60000],
			"open":[1,2],"high":[1,2],"low":[1,2],"close":[1,2],"volume":[10,20]
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter())

	// 4 bars at 1m resolution, page size 2 → two requests.
	candles, err := c.GetCandleRange(context.Background(), "ETH-PERPETUAL", 0, 3*60_000, time.Minute, 2)
	if err != nil {
		t.Fatalf("GetCandleRange: %v", err)
	}
	if len(starts) != 2 {
		t.Fatalf("requests = %d (%v), want 2", len(starts), starts)
	}
	if starts[0] != "0" || starts[1] != "120000" {
		t.Errorf("page starts = %v, want [0 120000]", starts)
	}
	if len(candles) != 4 {
		t.Errorf("candles = %d, want 4", len(candles))
	}
}

func TestChartDataTruncatesMismatchedArrays(t *testing.T) {
	data := ChartData{
		Status: "ok",
		Ticks:  []int64{0, 60000, 120000},
		Open:   []float64{1, 2},
		High:   []float64{1, 2},
		Low:    []float64{1, 2},
		Close:  []float64{1, 2},
		Volume: []float64{1, 2},
	}

	candles := data.Candles("BTC-PERPETUAL")
	if len(candles) != 2 {
		t.Errorf("candles = %d, want 2 (shortest array wins)", len(candles))
	}
}
