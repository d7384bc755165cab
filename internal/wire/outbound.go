package wire

import (
	"encoding/json"
	"time"
)

// Authorization is the first frame the client must send after the
// socket opens. Token carries the "Bearer " scheme prefix.
type Authorization struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// NewAuthorization builds an authorization frame from a raw token.
func NewAuthorization(token string) Authorization {
	return Authorization{
		Type:  TypeAuthorization,
		Token: "Bearer " + token,
	}
}

// Ping is the application-level keep-alive frame. The server answers
// with a pong frame; WebSocket control pings are not used.
type Ping struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// NewPing stamps a ping with the given wall clock in epoch milliseconds.
func NewPing(now time.Time) Ping {
	return Ping{
		Type: TypePing,
		TS:   now.UnixMilli(),
	}
}

// UserMessage is the business payload that asks the backend for a
// reply. ModelSettings is passed through verbatim; the server falls
// back to the session's stored settings when it is absent.
type UserMessage struct {
	Message            string          `json:"message"`
	Images             []string        `json:"images,omitempty"`
	ModelSettings      json.RawMessage `json:"model_settings,omitempty"`
	EnableVoice        bool            `json:"enable_voice"`
	EnableTextCleaning bool            `json:"enable_text_cleaning"`
}
