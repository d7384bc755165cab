package connection

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fishchat/chatlink/internal/version"
)

// Transport is one established socket. The manager dials a fresh
// transport per attempt and discards it on close, so a transport never
// reconnects itself.
type Transport interface {
	// Send writes one text frame.
	Send(data []byte) error

	// Close shuts the socket down. Safe to call more than once.
	Close() error

	// Messages returns the inbound frame channel.
	Messages() <-chan []byte

	// Errors returns a channel that yields the terminal read error.
	Errors() <-chan error
}

// dialFunc produces a connected transport. The manager's default is
// dialTransport; tests substitute failing or scripted transports.
type dialFunc func(ctx context.Context, url string, cfg ManagerConfig) (Transport, error)

// wsTransport implements Transport over a gorilla connection.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	messages chan []byte
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
}

// dialTransport performs the WebSocket handshake and starts the read
// pump.
func dialTransport(ctx context.Context, url string, cfg ManagerConfig) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		messages:     make(chan []byte, cfg.MessageBuffer),
		errors:       make(chan error, 1),
		done:         make(chan struct{}),
	}

	go t.readPump()

	return t, nil
}

// Send writes one text frame with the configured deadline.
func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears the socket down.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.writeMu.Lock()
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}

// Messages returns the inbound frame channel.
func (t *wsTransport) Messages() <-chan []byte {
	return t.messages
}

// Errors returns the error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// readPump reads frames into the messages channel until the socket
// dies. The terminal error goes to the errors channel unless Close was
// called first.
func (t *wsTransport) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				select {
				case t.errors <- err:
				default:
				}
			}
			return
		}

		select {
		case t.messages <- data:
		case <-t.done:
			return
		}
	}
}
