package gaps

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/optflow/deriv-data/internal/api"
	"github.com/optflow/deriv-data/internal/model"
)

// graceBars is how many trailing bars are excluded from detection. The
// current bar is still forming and the previous one may sit in the tick
// buffer waiting for a flush; neither is a coverage violation.
const graceBars = 2

// InstrumentSource provides the instruments to scan.
type InstrumentSource interface {
	ActiveInstruments() []model.Instrument
}

// EventSink accepts backfilled candles for staging.
type EventSink interface {
	TryEnqueue(ev model.Event) bool
}

// Config holds detector and backfill configuration.
type Config struct {
	Resolution   time.Duration // expected candle cadence
	ScanInterval time.Duration
	Lookback     time.Duration
	PageSize     int // candles per history request
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Resolution:   time.Minute,
		ScanInterval: 5 * time.Minute,
		Lookback:     24 * time.Hour,
		PageSize:     500,
	}
}

// Coordinator runs the detect/backfill cycle: scan persisted coverage,
// record violations, then drain open gaps sequentially per instrument.
type Coordinator struct {
	cfg         Config
	store       Store
	client      *api.Client
	instruments InstrumentSource
	sink        EventSink
	logger      *slog.Logger

	// now is injectable so detection windows are testable.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Coordinator.
func New(cfg Config, store Store, client *api.Client, instruments InstrumentSource, sink EventSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:         cfg,
		store:       store,
		client:      client,
		instruments: instruments,
		sink:        sink,
		logger:      logger,
		now:         time.Now,
	}
}

// Start begins the scan loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("gap coordinator started",
		"resolution", c.cfg.Resolution,
		"scan_interval", c.cfg.ScanInterval,
		"lookback", c.cfg.Lookback,
	)

	return nil
}

// Stop gracefully shuts down.
func (c *Coordinator) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("gap coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	// First cycle on start picks up gaps left by a previous run.
	c.cycle()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.cycle()
		}
	}
}

// cycle runs one scan followed by one drain pass.
func (c *Coordinator) cycle() {
	c.scan()
	c.drain()
}

// scan detects coverage violations per instrument and records them.
func (c *Coordinator) scan() {
	res := c.cfg.Resolution.Milliseconds()
	nowMS := c.now().UnixMilli()
	windowStart := nowMS - c.cfg.Lookback.Milliseconds()
	windowEnd := alignDown(nowMS, res) - graceBars*res

	detected := 0
	for _, inst := range c.instruments.ActiveInstruments() {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		times, err := c.store.CandleTimes(c.ctx, inst.Name, windowStart, windowEnd)
		if err != nil {
			c.logger.Warn("failed to scan coverage", "instrument", inst.Name, "error", err)
			continue
		}
		if len(times) == 0 {
			// No coverage at all in the window; nothing to anchor on.
			c.logger.Debug("no candles in window", "instrument", inst.Name)
			continue
		}

		for _, gap := range findGaps(times, windowEnd, res) {
			record := model.CoverageGap{
				Instrument: inst.Name,
				GapStart:   gap.start,
				GapEnd:     gap.end,
				State:      model.GapOpen,
				DetectedAt: nowMS,
			}
			if err := c.store.RecordGap(c.ctx, record); err != nil {
				c.logger.Warn("failed to record gap", "instrument", inst.Name, "error", err)
				continue
			}
			detected++
		}
	}

	if detected > 0 {
		c.logger.Info("coverage gaps detected", "gaps", detected)
	}
}

// drain works the open gap queue sequentially. Per-instrument order is
// preserved by the store ordering; the history API paginates per
// instrument, so parallel fills of one instrument are never attempted.
func (c *Coordinator) drain() {
	gaps, err := c.store.OpenGaps(c.ctx)
	if err != nil {
		c.logger.Warn("failed to load open gaps", "error", err)
		return
	}

	for _, gap := range gaps {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.fill(gap); err != nil {
			// Transient; the gap stays open and the next cycle retries.
			c.logger.Warn("backfill failed",
				"instrument", gap.Instrument,
				"gap_start", gap.GapStart,
				"gap_end", gap.GapEnd,
				"error", err,
			)
		}
	}
}

// fill closes one gap. Coverage is always re-checked from storage first, so
// a gap fetched on an earlier cycle (whose candles have since flushed) is
// closed without another upstream call, and a crash mid-fill resumes
// cleanly.
func (c *Coordinator) fill(gap model.CoverageGap) error {
	res := c.cfg.Resolution.Milliseconds()
	expected := gap.Periods(res)

	times, err := c.store.CandleTimes(c.ctx, gap.Instrument, gap.GapStart, gap.GapEnd)
	if err != nil {
		return err
	}
	if int64(len(times)) >= expected {
		c.logger.Info("gap closed",
			"instrument", gap.Instrument,
			"gap_start", gap.GapStart,
			"gap_end", gap.GapEnd,
			"bars", len(times),
		)
		return c.store.ResolveGap(c.ctx, gap, model.GapClosed)
	}

	candles, err := c.client.GetCandleRange(c.ctx, gap.Instrument, gap.GapStart, gap.GapEnd, c.cfg.Resolution, c.cfg.PageSize)
	if errors.Is(err, api.ErrInstrumentNotFound) {
		// Delisted; the history is gone for good.
		c.logger.Info("gap unfillable, instrument gone", "instrument", gap.Instrument)
		return c.store.ResolveGap(c.ctx, gap, model.GapUnfillable)
	}
	if err != nil {
		return err
	}

	dropped := 0
	for _, candle := range candles {
		if !c.sink.TryEnqueue(candle) {
			dropped++
		}
	}
	if dropped > 0 {
		// Staged partially; the gap stays open and the next cycle refetches
		// whatever the writer never saw.
		c.logger.Warn("tick buffer full during backfill",
			"instrument", gap.Instrument,
			"dropped", dropped,
		)
		return nil
	}

	if int64(len(candles)) < expected {
		// Upstream has no bars for part of the range. Retrying cannot
		// produce them; keep what arrived and stop chasing the rest.
		c.logger.Info("gap partially unfillable",
			"instrument", gap.Instrument,
			"gap_start", gap.GapStart,
			"gap_end", gap.GapEnd,
			"bars", len(candles),
			"expected", expected,
		)
		return c.store.ResolveGap(c.ctx, gap, model.GapUnfillable)
	}

	// Full range staged. Closure happens on a later cycle once the writer
	// has flushed and storage confirms coverage.
	c.logger.Info("gap backfilled",
		"instrument", gap.Instrument,
		"gap_start", gap.GapStart,
		"gap_end", gap.GapEnd,
		"bars", len(candles),
	)
	return nil
}
