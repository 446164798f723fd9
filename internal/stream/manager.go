// Package stream owns the WebSocket side of ingestion: one logical session
// per currency, a state machine around connect/subscribe/stream/reconnect,
// and delivery of decoded events into the tick buffer.
//
// The desired subscription set is retained in memory, so resubscription
// after a reconnect reproduces the exact instrument/channel set without
// external coordination. The read loop never blocks on the buffer: events
// the buffer rejects are counted and dropped.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/optflow/deriv-data/internal/decode"
	"github.com/optflow/deriv-data/internal/model"
)

// EventSink accepts decoded events for staging. A false return means the
// sink was at capacity and the event was not stored.
type EventSink interface {
	TryEnqueue(ev model.Event) bool
}

// Manager owns one streaming session for a currency.
type Manager struct {
	cfg      ManagerConfig
	currency string
	decoder  *decode.Decoder
	sink     EventSink
	logger   *slog.Logger

	// dial creates a fresh transport per connection attempt.
	dial func() Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refresh chan struct{}

	mu         sync.RWMutex
	state      State
	desired    []string // desired channel set, survives reconnects
	subscribed int

	lastMsg atomic.Int64
	dropped atomic.Int64
	reqID   atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan decode.Result
}

// NewManager creates a connection manager for one currency.
func NewManager(cfg ManagerConfig, currency string, sink EventSink, decoder *decode.Decoder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("currency", currency)

	m := &Manager{
		cfg:      cfg,
		currency: currency,
		decoder:  decoder,
		sink:     sink,
		logger:   logger,
		state:    StateDisconnected,
		refresh:  make(chan struct{}, 1),
		pending:  make(map[int64]chan decode.Result),
	}
	m.dial = func() Client {
		return NewClient(ClientConfig{
			URL:          cfg.WSURL,
			WriteTimeout: cfg.WriteTimeout,
			BufferSize:   DefaultClientConfig().BufferSize,
		}, logger)
	}
	return m
}

// SetInstruments replaces the desired subscription set with the channels
// for the given instrument names. While streaming, the new set is
// subscribed on the live connection; it is also what any later reconnect
// restores.
func (m *Manager) SetInstruments(names []string) {
	channels := make([]string, 0, len(names)*len(m.cfg.Channels))
	for _, name := range names {
		for _, tmpl := range m.cfg.Channels {
			channels = append(channels, fmt.Sprintf(tmpl, name))
		}
	}

	m.mu.Lock()
	m.desired = channels
	m.mu.Unlock()

	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Start begins the connection loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started", "desired_channels", len(m.Desired()))
	return nil
}

// Stop gracefully shuts down the session.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}
}

// Desired returns a copy of the desired channel set.
func (m *Manager) Desired() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.desired)
}

// Status returns a point-in-time view for the status reporter.
func (m *Manager) Status() Status {
	m.mu.RLock()
	state, subscribed := m.state, m.subscribed
	m.mu.RUnlock()

	return Status{
		Currency:           m.currency,
		State:              state,
		SubscribedChannels: subscribed,
		LastMessageTS:      m.lastMsg.Load(),
		DroppedEvents:      m.dropped.Load(),
	}
}

// run drives the state machine: connect, subscribe, stream until failure,
// reconnect with capped jittered backoff.
func (m *Manager) run() {
	defer m.wg.Done()

	backoff := m.cfg.ReconnectBaseDelay

	for {
		select {
		case <-m.ctx.Done():
			m.setState(StateShuttingDown)
			return
		default:
		}

		m.setState(StateConnecting)
		cl := m.dial()
		if err := cl.Connect(m.ctx); err != nil {
			m.logger.Warn("connect failed", "error", err, "backoff", backoff)
			m.setState(StateReconnecting)
			if !m.sleep(backoff) {
				m.setState(StateShuttingDown)
				return
			}
			backoff = m.nextBackoff(backoff)
			continue
		}
		backoff = m.cfg.ReconnectBaseDelay

		failed := make(chan struct{})
		m.wg.Add(1)
		go m.readLoop(cl, failed)

		m.setState(StateSubscribing)
		m.subscribeAll(cl)
		m.setState(StateStreaming)

	streaming:
		for {
			select {
			case <-m.ctx.Done():
				m.setState(StateShuttingDown)
				cl.Close()
				return

			case <-m.refresh:
				// Desired set changed mid-session; subscribing the full
				// set again is idempotent upstream.
				m.subscribeAll(cl)

			case <-failed:
				cl.Close()
				break streaming
			}
		}

		m.setState(StateReconnecting)
		m.logger.Info("reconnecting", "backoff", backoff)
		if !m.sleep(backoff) {
			m.setState(StateShuttingDown)
			return
		}
		backoff = m.nextBackoff(backoff)
	}
}

// readLoop pumps inbound frames and watches liveness. It closes failed and
// returns on any transport error or when no frame (heartbeats included)
// arrives within ReadTimeout.
func (m *Manager) readLoop(cl Client, failed chan struct{}) {
	defer m.wg.Done()

	// Connecting counts as activity so a dead-on-arrival connection still
	// gets a full ReadTimeout before being declared stale.
	m.lastMsg.Store(time.Now().UnixMilli())

	checkEvery := m.cfg.ReadTimeout / 4
	if checkEvery < 100*time.Millisecond {
		checkEvery = 100 * time.Millisecond
	}
	liveness := time.NewTicker(checkEvery)
	defer liveness.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-cl.Errors():
			m.logger.Warn("connection error", "error", err)
			close(failed)
			return

		case <-liveness.C:
			last := time.UnixMilli(m.lastMsg.Load())
			if time.Since(last) > m.cfg.ReadTimeout {
				m.logger.Warn("connection stale, forcing reconnect",
					"last_message", last,
					"timeout", m.cfg.ReadTimeout,
				)
				close(failed)
				return
			}

		case msg, ok := <-cl.Messages():
			if !ok {
				close(failed)
				return
			}
			m.handleMessage(cl, msg)
		}
	}
}

// handleMessage decodes one frame and dispatches it.
func (m *Manager) handleMessage(cl Client, msg TimestampedMessage) {
	receivedAt := msg.ReceivedAt.UnixMilli()
	m.lastMsg.Store(receivedAt)

	res, err := m.decoder.Decode(msg.Data, receivedAt)
	if err != nil {
		// Decoder counted and logged it; the pipeline continues.
		return
	}

	switch res.Kind {
	case decode.KindQuote:
		m.offer(*res.Quote)

	case decode.KindTrades:
		for _, trade := range res.Trades {
			m.offer(trade)
		}

	case decode.KindHeartbeat:
		if res.Heartbeat.TestRequest {
			m.sendTest(cl)
		}

	case decode.KindAck:
		m.routeResponse(res.Ack.RequestID, res)

	case decode.KindNotice:
		if res.Notice.RequestID != 0 {
			m.routeResponse(res.Notice.RequestID, res)
			return
		}
		m.logger.Warn("server error notice",
			"code", res.Notice.Code,
			"message", res.Notice.Message,
		)
	}
}

// offer hands an event to the tick buffer without blocking.
func (m *Manager) offer(ev model.Event) {
	if m.sink.TryEnqueue(ev) {
		return
	}
	if n := m.dropped.Add(1); n%1000 == 1 {
		m.logger.Warn("tick buffer full, dropping events", "dropped_total", n)
	}
}

// subscribeAll issues subscribe requests for the desired set in batches.
// Rejected channels are logged and skipped; partial subscription is not
// fatal.
func (m *Manager) subscribeAll(cl Client) {
	desired := m.Desired()
	if len(desired) == 0 {
		return
	}

	total := 0
	for lo := 0; lo < len(desired); lo += m.cfg.SubscribeBatchSize {
		hi := lo + m.cfg.SubscribeBatchSize
		if hi > len(desired) {
			hi = len(desired)
		}
		batch := desired[lo:hi]

		accepted, err := m.subscribe(cl, batch)
		if err != nil {
			m.logger.Warn("subscribe batch failed", "channels", len(batch), "error", err)
			continue
		}
		if len(accepted) < len(batch) {
			m.logger.Warn("channels rejected",
				"rejected", rejectedChannels(batch, accepted),
			)
		}
		total += len(accepted)
	}

	m.mu.Lock()
	m.subscribed = total
	m.mu.Unlock()

	m.logger.Info("subscriptions established", "subscribed", total, "desired", len(desired))
}

// subscribe sends one subscribe request and waits for its response.
// Returns the accepted channel subset.
func (m *Manager) subscribe(cl Client, channels []string) ([]string, error) {
	id := m.reqID.Add(1)
	respCh := make(chan decode.Result, 1)

	m.pendingMu.Lock()
	m.pending[id] = respCh
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	data, _ := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "public/subscribe",
		Params:  subscribeParams{Channels: channels},
	})
	if err := cl.Send(data); err != nil {
		return nil, err
	}

	select {
	case <-m.ctx.Done():
		return nil, m.ctx.Err()
	case <-time.After(m.cfg.SubscribeTimeout):
		return nil, ErrTimeout
	case res := <-respCh:
		if res.Kind == decode.KindNotice {
			return nil, fmt.Errorf("subscribe rejected (%d): %s", res.Notice.Code, res.Notice.Message)
		}
		return res.Ack.Channels, nil
	}
}

// routeResponse delivers a request response to the waiting goroutine.
func (m *Manager) routeResponse(id int64, res decode.Result) {
	m.pendingMu.Lock()
	ch, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.pendingMu.Unlock()

	if ok {
		select {
		case ch <- res:
		default:
		}
	}
}

// sendTest replies to a test_request heartbeat.
func (m *Manager) sendTest(cl Client) {
	data, _ := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      m.reqID.Add(1),
		Method:  "public/test",
	})
	if err := cl.Send(data); err != nil {
		m.logger.Debug("failed to answer test_request", "error", err)
	}
}

// sleep waits the jittered backoff. Returns false if the context ended.
func (m *Manager) sleep(backoff time.Duration) bool {
	// Jitter: backoff * (0.5 to 1.5) avoids synchronized reconnects
	// across currencies.
	jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(jitter):
		return true
	}
}

// nextBackoff doubles the wait, capped at the configured maximum.
func (m *Manager) nextBackoff(backoff time.Duration) time.Duration {
	backoff *= 2
	if backoff > m.cfg.ReconnectMaxDelay {
		backoff = m.cfg.ReconnectMaxDelay
	}
	return backoff
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// rejectedChannels returns requested channels absent from accepted.
func rejectedChannels(requested, accepted []string) []string {
	ok := make(map[string]bool, len(accepted))
	for _, ch := range accepted {
		ok[ch] = true
	}
	var rejected []string
	for _, ch := range requested {
		if !ok[ch] {
			rejected = append(rejected, ch)
		}
	}
	return rejected
}
