package config

import "time"

// Default values for optional configuration fields. The connection
// defaults mirror connection.DefaultManagerConfig.
const (
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultHeartbeatInterval    = 25 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultQueueCapacity        = 100
	DefaultMessageBuffer        = 256
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 15 * time.Second
	DefaultReconnectJitter      = 300 * time.Millisecond
	DefaultReconnectMaxExponent = 10
)

func (c *ClientConfig) applyDefaults() {
	// Chat defaults
	if c.Chat.HandshakeTimeout == 0 {
		c.Chat.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Connection defaults
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.QueueCapacity == 0 {
		c.Connection.QueueCapacity = DefaultQueueCapacity
	}
	if c.Connection.MessageBuffer == 0 {
		c.Connection.MessageBuffer = DefaultMessageBuffer
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.ReconnectJitter == 0 {
		c.Connection.ReconnectJitter = DefaultReconnectJitter
	}
	if c.Connection.ReconnectMaxExponent == 0 {
		c.Connection.ReconnectMaxExponent = DefaultReconnectMaxExponent
	}
}
