package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrTimeout       = errors.New("operation timeout")
)

// State is the connection manager state machine position.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribing  State = "subscribing"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateShuttingDown State = "shutting_down"
)

// TimestampedMessage wraps raw frame bytes with the local receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ManagerConfig configures a per-currency connection manager.
type ManagerConfig struct {
	WSURL              string
	Channels           []string // channel templates, e.g. "ticker.%s.100ms"
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	ReadTimeout        time.Duration // liveness: max silence before forced reconnect
	WriteTimeout       time.Duration
	SubscribeTimeout   time.Duration
	SubscribeBatchSize int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Channels:           []string{"ticker.%s.100ms", "trades.%s.100ms"},
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		SubscribeTimeout:   10 * time.Second,
		SubscribeBatchSize: 50,
	}
}

// Status is a point-in-time view of a manager, consumed by the status
// reporter.
type Status struct {
	Currency           string
	State              State
	SubscribedChannels int
	LastMessageTS      int64 // ms since epoch, 0 before first message
	DroppedEvents      int64 // events rejected by a full tick buffer
}

// request is an outbound JSON-RPC request frame.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// subscribeParams is the params payload of a subscribe request.
type subscribeParams struct {
	Channels []string `json:"channels"`
}
