package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/optflow/deriv-data/internal/api"
	"github.com/optflow/deriv-data/internal/model"
)

// InstrumentSource provides the instruments to snapshot.
type InstrumentSource interface {
	ActiveInstruments() []model.Instrument
}

// EventSink accepts events for staging. A false return means the sink was
// full and the event was dropped.
type EventSink interface {
	TryEnqueue(ev model.Event) bool
}

// Config holds fetcher configuration.
type Config struct {
	Interval    time.Duration // cycle interval (default: 5m)
	Concurrency int           // max concurrent requests (default: 4)
	Timeout     time.Duration // per-request timeout (default: 10s)
	Depth       int           // book levels per side, 0 for full ladder
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		Depth:       20,
	}
}

// Stats counts fetcher outcomes across cycles.
type Stats struct {
	Cycles  int64
	Fetched int64
	Errors  int64
	Dropped int64
}

// Fetcher periodically snapshots order books via the REST API.
type Fetcher struct {
	cfg         Config
	client      *api.Client
	instruments InstrumentSource
	sink        EventSink
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles  atomic.Int64
	fetched atomic.Int64
	errors  atomic.Int64
	dropped atomic.Int64
}

// New creates a Fetcher.
func New(cfg Config, client *api.Client, instruments InstrumentSource, sink EventSink, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:         cfg,
		client:      client,
		instruments: instruments,
		sink:        sink,
		logger:      logger,
	}
}

// Start begins the snapshot loop.
func (f *Fetcher) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run()

	f.logger.Info("snapshot fetcher started",
		"interval", f.cfg.Interval,
		"concurrency", f.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the fetcher.
func (f *Fetcher) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("snapshot fetcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Cycles:  f.cycles.Load(),
		Fetched: f.fetched.Load(),
		Errors:  f.errors.Load(),
		Dropped: f.dropped.Load(),
	}
}

// run is the main snapshot loop.
func (f *Fetcher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	// Snapshot immediately on start.
	f.fetchAll()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.fetchAll()
		}
	}
}

// fetchAll snapshots every active instrument. One instrument failing never
// blocks the rest of the cycle.
func (f *Fetcher) fetchAll() {
	start := time.Now()

	instruments := f.instruments.ActiveInstruments()
	if len(instruments) == 0 {
		f.logger.Debug("no instruments to snapshot")
		return
	}

	// Semaphore for bounded concurrency; the shared rate limiter inside
	// the API client paces the actual requests.
	sem := make(chan struct{}, f.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, inst := range instruments {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-f.ctx.Done():
				return
			}

			if err := f.fetchInstrument(name); err != nil {
				if errors.Is(err, api.ErrInstrumentNotFound) {
					// Expired between universe refreshes; the next
					// refresh drops it.
					f.logger.Debug("instrument gone", "instrument", name)
					return
				}
				f.logger.Warn("failed to snapshot instrument",
					"instrument", name,
					"error", err,
				)
				failed.Add(1)
				return
			}

			fetched.Add(1)
		}(inst.Name)
	}

	wg.Wait()

	f.cycles.Add(1)
	f.fetched.Add(fetched.Load())
	f.errors.Add(failed.Load())

	f.logger.Info("snapshot cycle complete",
		"instruments", len(instruments),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// fetchInstrument snapshots a single order book and stages both the depth
// event and the REST-sourced quote update.
func (f *Fetcher) fetchInstrument(name string) error {
	ctx, cancel := context.WithTimeout(f.ctx, f.cfg.Timeout)
	defer cancel()

	book, err := f.client.GetOrderBook(ctx, name, f.cfg.Depth)
	if err != nil {
		return err
	}

	receivedAt := time.Now().UnixMilli()
	f.offer(book.ToDepthEvent())
	f.offer(book.ToQuoteUpdate(receivedAt))

	return nil
}

func (f *Fetcher) offer(ev model.Event) {
	if f.sink.TryEnqueue(ev) {
		return
	}
	if n := f.dropped.Add(1); n%100 == 1 {
		f.logger.Warn("tick buffer full, dropping snapshot event", "dropped_total", n)
	}
}
