package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Chat.Endpoint == "" {
		return errors.New("chat.endpoint is required")
	}
	if !strings.HasPrefix(c.Chat.Endpoint, "ws://") && !strings.HasPrefix(c.Chat.Endpoint, "wss://") {
		return fmt.Errorf("chat.endpoint must be a ws:// or wss:// URL, got %q", c.Chat.Endpoint)
	}

	if c.Connection.HeartbeatInterval <= 0 {
		return errors.New("connection.heartbeat_interval must be positive")
	}
	if c.Connection.QueueCapacity < 1 {
		return errors.New("connection.queue_capacity must be >= 1")
	}
	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be positive")
	}
	if c.Connection.ReconnectBaseDelay > c.Connection.ReconnectMaxDelay {
		return fmt.Errorf("connection.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Connection.ReconnectBaseDelay, c.Connection.ReconnectMaxDelay)
	}
	if c.Connection.ReconnectJitter < 0 {
		return errors.New("connection.reconnect_jitter must be >= 0")
	}
	if c.Connection.ReconnectMaxExponent < 1 {
		return errors.New("connection.reconnect_max_exponent must be >= 1")
	}

	if c.Credentials.Path == "" {
		return errors.New("credentials.path is required")
	}

	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return errors.New("transcript.dir is required when transcript.enabled is set")
	}

	return nil
}
