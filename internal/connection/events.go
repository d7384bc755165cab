package connection

import "github.com/fishchat/chatlink/internal/wire"

// EventHandler receives connection lifecycle and frame events. Handlers
// run on manager goroutines in event order and may call back into the
// Manager.
type EventHandler interface {
	// HandleOpen fires when the transport finishes its handshake.
	HandleOpen()

	// HandleAuthSuccess fires once per connection when the gate
	// authorizes, whether explicitly or implicitly.
	HandleAuthSuccess()

	// HandleFrame receives every forwarded inbound frame. Swallowed
	// protocol frames (auth_success, pong) never arrive here.
	HandleFrame(f wire.Frame)

	// HandleClose fires when the transport goes away. err is nil for
	// an explicit Close.
	HandleClose(err error)

	// HandleError reports transport failures that are not clean
	// closes.
	HandleError(err error)
}

// HandlerFuncs adapts plain functions to EventHandler. Nil fields drop
// the event.
type HandlerFuncs struct {
	Open        func()
	AuthSuccess func()
	Frame       func(f wire.Frame)
	Close       func(err error)
	Error       func(err error)
}

func (h HandlerFuncs) HandleOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) HandleAuthSuccess() {
	if h.AuthSuccess != nil {
		h.AuthSuccess()
	}
}

func (h HandlerFuncs) HandleFrame(f wire.Frame) {
	if h.Frame != nil {
		h.Frame(f)
	}
}

func (h HandlerFuncs) HandleClose(err error) {
	if h.Close != nil {
		h.Close(err)
	}
}

func (h HandlerFuncs) HandleError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
