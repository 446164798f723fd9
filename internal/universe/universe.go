// Package universe discovers the tracked instrument set and keeps it
// current. Discovery runs against the instruments endpoint per currency and
// kind; downstream consumers (stream managers, the snapshot fetcher, the
// backfill scanner) read point-in-time views or subscribe to refresh
// notifications.
package universe

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/optflow/deriv-data/internal/api"
	"github.com/optflow/deriv-data/internal/model"
)

// Config holds universe discovery configuration.
type Config struct {
	Currencies      []string
	Kinds           []string
	MaxInstruments  int // per currency, 0 for no cap
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currencies:      []string{"BTC", "ETH"},
		Kinds:           []string{"future", "option"},
		RefreshInterval: 15 * time.Minute,
	}
}

// Recorder persists discovered instruments. Instruments are immutable once
// observed, so recording is insert-only.
type Recorder interface {
	RecordInstruments(ctx context.Context, instruments []model.Instrument) error
}

// Change describes one refresh outcome for a currency.
type Change struct {
	Currency string
	Names    []string // full instrument name set after the refresh
	Added    int
	Removed  int
}

// Universe maintains the active instrument set.
type Universe struct {
	cfg      Config
	client   *api.Client
	recorder Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	byCurrency  map[string][]model.Instrument
	lastRefresh time.Time

	changes chan Change
}

// New creates a Universe.
func New(cfg Config, client *api.Client, logger *slog.Logger) *Universe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Universe{
		cfg:        cfg,
		client:     client,
		logger:     logger,
		byCurrency: make(map[string][]model.Instrument),
		changes:    make(chan Change, len(cfg.Currencies)*4),
	}
}

// SetRecorder attaches instrument persistence. Must be called before Start.
func (u *Universe) SetRecorder(r Recorder) {
	u.recorder = r
}

// Start performs the initial discovery (blocking) and begins periodic
// refresh. Initial discovery failing is fatal; a collector with no
// instrument set has nothing to subscribe to.
func (u *Universe) Start(ctx context.Context) error {
	u.ctx, u.cancel = context.WithCancel(ctx)

	if err := u.refreshAll(u.ctx); err != nil {
		u.cancel()
		return err
	}

	u.wg.Add(1)
	go u.run()

	u.logger.Info("universe started",
		"currencies", u.cfg.Currencies,
		"instruments", u.totalInstruments(),
	)

	return nil
}

// Stop gracefully shuts down.
func (u *Universe) Stop(ctx context.Context) error {
	if u.cancel != nil {
		u.cancel()
	}

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		u.logger.Info("universe stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveInstruments returns every tracked instrument across currencies.
func (u *Universe) ActiveInstruments() []model.Instrument {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var out []model.Instrument
	for _, list := range u.byCurrency {
		out = append(out, list...)
	}
	return out
}

// InstrumentNames returns the tracked instrument names for one currency.
func (u *Universe) InstrumentNames(currency string) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	list := u.byCurrency[currency]
	names := make([]string, len(list))
	for i, inst := range list {
		names[i] = inst.Name
	}
	return names
}

// Changes returns the refresh notification channel. Notifications are
// best-effort; a slow consumer misses intermediate sets, never the data.
func (u *Universe) Changes() <-chan Change {
	return u.changes
}

// run is the periodic refresh loop.
func (u *Universe) run() {
	defer u.wg.Done()

	ticker := time.NewTicker(u.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.ctx.Done():
			return
		case <-ticker.C:
			if err := u.refreshAll(u.ctx); err != nil {
				// Keep serving the previous set; the next tick retries.
				u.logger.Error("universe refresh failed", "error", err)
			}
		}
	}
}

// refreshAll re-discovers every currency. A currency failing mid-refresh
// keeps its previous set.
func (u *Universe) refreshAll(ctx context.Context) error {
	start := time.Now()
	var firstErr error

	for _, currency := range u.cfg.Currencies {
		if err := u.refreshCurrency(ctx, currency); err != nil {
			u.logger.Warn("failed to refresh currency", "currency", currency, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	u.mu.Lock()
	u.lastRefresh = time.Now()
	u.mu.Unlock()

	u.logger.Debug("universe refresh complete",
		"instruments", u.totalInstruments(),
		"duration", time.Since(start),
	)

	return firstErr
}

// refreshCurrency discovers one currency's instruments and publishes the
// change if the set moved.
func (u *Universe) refreshCurrency(ctx context.Context, currency string) error {
	var discovered []model.Instrument
	for _, kind := range u.cfg.Kinds {
		wire, err := u.client.GetInstruments(ctx, currency, kind)
		if err != nil {
			return err
		}
		for _, w := range wire {
			if !w.IsActive {
				continue
			}
			discovered = append(discovered, w.ToInstrument())
		}
	}

	selected := u.selectInstruments(discovered)

	if u.recorder != nil && len(selected) > 0 {
		if err := u.recorder.RecordInstruments(ctx, selected); err != nil {
			// The in-memory set still serves; persistence catches up on
			// the next refresh.
			u.logger.Warn("failed to record instruments", "currency", currency, "error", err)
		}
	}

	u.mu.Lock()
	previous := u.byCurrency[currency]
	u.byCurrency[currency] = selected
	u.mu.Unlock()

	added, removed := diffSets(previous, selected)
	if added == 0 && removed == 0 && len(previous) > 0 {
		return nil
	}

	names := make([]string, len(selected))
	for i, inst := range selected {
		names[i] = inst.Name
	}

	change := Change{Currency: currency, Names: names, Added: added, Removed: removed}
	select {
	case u.changes <- change:
	default:
		u.logger.Debug("change channel full, dropping notification", "currency", currency)
	}

	u.logger.Info("instrument set updated",
		"currency", currency,
		"instruments", len(selected),
		"added", added,
		"removed", removed,
	)

	return nil
}

// selectInstruments applies the per-currency cap. Perpetuals and futures
// always make the cut; options fill the remainder nearest expiry first, so
// the liquid near-dated chain is tracked when the full chain exceeds the
// cap.
func (u *Universe) selectInstruments(instruments []model.Instrument) []model.Instrument {
	if u.cfg.MaxInstruments <= 0 || len(instruments) <= u.cfg.MaxInstruments {
		return instruments
	}

	var base, options []model.Instrument
	for _, inst := range instruments {
		if inst.Kind == model.KindOption {
			options = append(options, inst)
		} else {
			base = append(base, inst)
		}
	}

	slices.SortFunc(options, func(a, b model.Instrument) int {
		if a.ExpiryTS != b.ExpiryTS {
			if a.ExpiryTS < b.ExpiryTS {
				return -1
			}
			return 1
		}
		if a.Strike != b.Strike {
			if a.Strike < b.Strike {
				return -1
			}
			return 1
		}
		return 0
	})

	room := u.cfg.MaxInstruments - len(base)
	if room < 0 {
		room = 0
	}
	if room > len(options) {
		room = len(options)
	}

	return append(base, options[:room]...)
}

func (u *Universe) totalInstruments() int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	total := 0
	for _, list := range u.byCurrency {
		total += len(list)
	}
	return total
}

// diffSets counts membership changes between two instrument lists.
func diffSets(previous, current []model.Instrument) (added, removed int) {
	prev := make(map[string]bool, len(previous))
	for _, inst := range previous {
		prev[inst.Name] = true
	}
	curr := make(map[string]bool, len(current))
	for _, inst := range current {
		curr[inst.Name] = true
	}

	for name := range curr {
		if !prev[name] {
			added++
		}
	}
	for name := range prev {
		if !curr[name] {
			removed++
		}
	}
	return added, removed
}
