package connection

import (
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrTransportClosed = errors.New("transport closed")
)

// ChatMode selects which backend socket family the session talks to.
type ChatMode int

const (
	// ModeStandard is the plain per-session chat socket.
	ModeStandard ChatMode = iota
	// ModeAssistant is the retrieval-assistant socket. The assistant id
	// is part of the endpoint path.
	ModeAssistant
)

// String returns a human-readable mode name.
func (m ChatMode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// SessionContext is the (endpoint, session, mode) triple the caller
// wants connected. Endpoint is the socket path up to but not including
// the session id: .../ws/chat for standard chats,
// .../ws/chat/<assistant-id> for assistant-backed ones.
type SessionContext struct {
	Endpoint  string
	SessionID string
	Mode      ChatMode
}

// complete reports whether there is enough context to dial.
func (s SessionContext) complete() bool {
	return s.Endpoint != "" && s.SessionID != ""
}

// dialURL joins the endpoint and session id into the socket URL.
func (s SessionContext) dialURL() string {
	return strings.TrimRight(s.Endpoint, "/") + "/" + s.SessionID
}

// target is the endpoint/session pair snapshotted when a dial starts.
// Connect compares it against the current context to decide whether an
// open transport can be reused.
type target struct {
	endpoint  string
	sessionID string
}

// TokenSource supplies the bearer token sent in the authorization
// frame. A lookup error is not fatal; the manager sends an empty token
// and lets the backend reject the connection.
type TokenSource interface {
	Token(endpoint string) (string, error)
}

// TokenSourceFunc adapts a plain function to TokenSource.
type TokenSourceFunc func(endpoint string) (string, error)

// Token calls f.
func (f TokenSourceFunc) Token(endpoint string) (string, error) {
	return f(endpoint)
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	HandshakeTimeout     time.Duration // Dial deadline for the WebSocket handshake
	WriteTimeout         time.Duration // Write deadline for sends
	HeartbeatInterval    time.Duration // Period between keep-alive pings
	QueueCapacity        int           // Pending-send bound; oldest entry dropped beyond this
	MessageBuffer        int           // Inbound channel buffer size
	ReconnectBaseDelay   time.Duration // First retry delay
	ReconnectMaxDelay    time.Duration // Retry delay ceiling
	ReconnectJitter      time.Duration // Random extra delay added to each retry
	ReconnectMaxExponent int           // Attempt count where doubling stops
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		HeartbeatInterval:    25 * time.Second,
		QueueCapacity:        100,
		MessageBuffer:        256,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    15 * time.Second,
		ReconnectJitter:      300 * time.Millisecond,
		ReconnectMaxExponent: 10,
	}
}

// ManagerStats is a point-in-time snapshot for logging and probes.
type ManagerStats struct {
	State             ConnectionState
	Authorized        bool
	QueueDepth        int
	Dropped           int64
	ReconnectAttempts int
}
