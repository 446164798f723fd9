package model

import "testing"

func TestEventKinds(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want EventKind
	}{
		{"quote", QuoteUpdate{Instrument: "BTC-PERPETUAL"}, EventQuote},
		{"trade", TradeEvent{Instrument: "BTC-PERPETUAL"}, EventTrade},
		{"depth", DepthEvent{Instrument: "BTC-PERPETUAL"}, EventDepth},
		{"candle", CandleEvent{Instrument: "BTC-PERPETUAL"}, EventCandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstrumentIsOption(t *testing.T) {
	opt := Instrument{Name: "BTC-27MAR26-100000-C", Kind: KindOption, Strike: 100000, OptionType: "call"}
	if !opt.IsOption() {
		t.Error("IsOption() = false for option instrument")
	}

	perp := Instrument{Name: "BTC-PERPETUAL", Kind: KindPerpetual}
	if perp.IsOption() {
		t.Error("IsOption() = true for perpetual instrument")
	}
}

func TestGapPeriods(t *testing.T) {
	tests := []struct {
		name       string
		gap        CoverageGap
		resolution int64
		want       int64
	}{
		{"single period", CoverageGap{GapStart: 60_000, GapEnd: 60_000}, 60_000, 1},
		{"ten periods", CoverageGap{GapStart: 60_000, GapEnd: 600_000}, 60_000, 10},
		{"inverted range", CoverageGap{GapStart: 600_000, GapEnd: 60_000}, 60_000, 0},
		{"zero resolution", CoverageGap{GapStart: 0, GapEnd: 600_000}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gap.Periods(tt.resolution); got != tt.want {
				t.Errorf("Periods(%d) = %d, want %d", tt.resolution, got, tt.want)
			}
		})
	}
}

func TestQuoteUpdatePartialFields(t *testing.T) {
	// A stream-sourced update carries Greeks but no best bid/ask; the absent
	// fields must stay nil so the writer cannot mistake them for zeros.
	q := QuoteUpdate{
		Instrument: "ETH-26JUN26-5000-P",
		TS:         1764588800000,
		Source:     SourceStream,
		Delta:      Float(-0.42),
		MarkIV:     Float(61.5),
	}

	if q.BestBid != nil || q.BestAsk != nil {
		t.Error("unset price fields should be nil")
	}
	if q.Delta == nil || *q.Delta != -0.42 {
		t.Errorf("Delta = %v, want -0.42", q.Delta)
	}
}
