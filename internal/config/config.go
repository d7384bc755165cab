package config

import (
	"time"

	"github.com/fishchat/chatlink/internal/connection"
)

// ClientConfig is the root configuration for a chat client process.
type ClientConfig struct {
	Chat        ChatConfig        `yaml:"chat"`
	Connection  ConnectionConfig  `yaml:"connection"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
}

// ChatConfig identifies the chat backend.
type ChatConfig struct {
	Endpoint         string        `yaml:"endpoint"` // base ws(s) URL; session id is appended
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	QueueCapacity        int           `yaml:"queue_capacity"`
	MessageBuffer        int           `yaml:"message_buffer"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectJitter      time.Duration `yaml:"reconnect_jitter"`
	ReconnectMaxExponent int           `yaml:"reconnect_max_exponent"`
}

// CredentialsConfig locates the bearer token file.
type CredentialsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// TranscriptConfig holds local transcript settings.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// ManagerConfig maps the connection section onto the manager's own
// config type.
func (c *ClientConfig) ManagerConfig() connection.ManagerConfig {
	return connection.ManagerConfig{
		HandshakeTimeout:     c.Chat.HandshakeTimeout,
		WriteTimeout:         c.Connection.WriteTimeout,
		HeartbeatInterval:    c.Connection.HeartbeatInterval,
		QueueCapacity:        c.Connection.QueueCapacity,
		MessageBuffer:        c.Connection.MessageBuffer,
		ReconnectBaseDelay:   c.Connection.ReconnectBaseDelay,
		ReconnectMaxDelay:    c.Connection.ReconnectMaxDelay,
		ReconnectJitter:      c.Connection.ReconnectJitter,
		ReconnectMaxExponent: c.Connection.ReconnectMaxExponent,
	}
}
