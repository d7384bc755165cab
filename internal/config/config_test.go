package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
chat:
  endpoint: wss://api.fishchat.io/ws/chat
  handshake_timeout: 5s
connection:
  heartbeat_interval: 20s
  queue_capacity: 50
credentials:
  path: /etc/chatlink/tokens.json
transcript:
  enabled: true
  dir: /var/lib/chatlink/transcripts
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chat.Endpoint != "wss://api.fishchat.io/ws/chat" {
		t.Errorf("Chat.Endpoint = %q, want %q", cfg.Chat.Endpoint, "wss://api.fishchat.io/ws/chat")
	}
	if cfg.Chat.HandshakeTimeout != 5*time.Second {
		t.Errorf("Chat.HandshakeTimeout = %v, want 5s", cfg.Chat.HandshakeTimeout)
	}
	if cfg.Connection.HeartbeatInterval != 20*time.Second {
		t.Errorf("Connection.HeartbeatInterval = %v, want 20s", cfg.Connection.HeartbeatInterval)
	}
	if cfg.Connection.QueueCapacity != 50 {
		t.Errorf("Connection.QueueCapacity = %d, want 50", cfg.Connection.QueueCapacity)
	}
	if cfg.Credentials.Path != "/etc/chatlink/tokens.json" {
		t.Errorf("Credentials.Path = %q, want /etc/chatlink/tokens.json", cfg.Credentials.Path)
	}
	if !cfg.Transcript.Enabled {
		t.Error("Transcript.Enabled = false, want true")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_TOKEN_DIR", "/home/tester/.chatlink")

	yaml := `
chat:
  endpoint: wss://api.fishchat.io/ws/chat
credentials:
  path: ${TEST_TOKEN_DIR}/tokens.json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Credentials.Path != "/home/tester/.chatlink/tokens.json" {
		t.Errorf("Credentials.Path = %q, want expanded path", cfg.Credentials.Path)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
chat:
  endpoint: wss://api.fishchat.io/ws/chat
credentials:
  path: /etc/chatlink/tokens.json
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Chat.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Chat.HandshakeTimeout = %v, want default %v", cfg.Chat.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Connection.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Connection.HeartbeatInterval = %v, want default %v", cfg.Connection.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Connection.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("Connection.QueueCapacity = %d, want default %d", cfg.Connection.QueueCapacity, DefaultQueueCapacity)
	}
	if cfg.Connection.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want default %v", cfg.Connection.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectMaxExponent != DefaultReconnectMaxExponent {
		t.Errorf("Connection.ReconnectMaxExponent = %d, want default %d", cfg.Connection.ReconnectMaxExponent, DefaultReconnectMaxExponent)
	}
}

func TestLoadAndValidate_MissingEndpoint(t *testing.T) {
	yaml := `
credentials:
  path: /etc/chatlink/tokens.json
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Error("expected validation error for missing endpoint")
	}
}

func TestValidate(t *testing.T) {
	valid := func() ClientConfig {
		cfg := ClientConfig{
			Chat:        ChatConfig{Endpoint: "wss://api.fishchat.io/ws/chat"},
			Credentials: CredentialsConfig{Path: "/etc/chatlink/tokens.json"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*ClientConfig) {},
			wantErr: "",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *ClientConfig) { c.Chat.Endpoint = "" },
			wantErr: "chat.endpoint is required",
		},
		{
			name:    "http endpoint",
			mutate:  func(c *ClientConfig) { c.Chat.Endpoint = "https://api.fishchat.io/ws/chat" },
			wantErr: `chat.endpoint must be a ws:// or wss:// URL, got "https://api.fishchat.io/ws/chat"`,
		},
		{
			name:    "zero heartbeat",
			mutate:  func(c *ClientConfig) { c.Connection.HeartbeatInterval = 0 },
			wantErr: "connection.heartbeat_interval must be positive",
		},
		{
			name:    "zero queue capacity",
			mutate:  func(c *ClientConfig) { c.Connection.QueueCapacity = 0 },
			wantErr: "connection.queue_capacity must be >= 1",
		},
		{
			name: "base delay above max",
			mutate: func(c *ClientConfig) {
				c.Connection.ReconnectBaseDelay = 30 * time.Second
				c.Connection.ReconnectMaxDelay = 15 * time.Second
			},
			wantErr: "connection.reconnect_base_delay (30s) cannot exceed reconnect_max_delay (15s)",
		},
		{
			name:    "missing credentials path",
			mutate:  func(c *ClientConfig) { c.Credentials.Path = "" },
			wantErr: "credentials.path is required",
		},
		{
			name: "transcript enabled without dir",
			mutate: func(c *ClientConfig) {
				c.Transcript.Enabled = true
				c.Transcript.Dir = ""
			},
			wantErr: "transcript.dir is required when transcript.enabled is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestManagerConfigMapping(t *testing.T) {
	cfg := ClientConfig{
		Chat: ChatConfig{
			Endpoint:         "wss://api.fishchat.io/ws/chat",
			HandshakeTimeout: 7 * time.Second,
		},
		Connection: ConnectionConfig{
			HeartbeatInterval:    20 * time.Second,
			WriteTimeout:         3 * time.Second,
			QueueCapacity:        42,
			MessageBuffer:        128,
			ReconnectBaseDelay:   500 * time.Millisecond,
			ReconnectMaxDelay:    8 * time.Second,
			ReconnectJitter:      100 * time.Millisecond,
			ReconnectMaxExponent: 6,
		},
	}

	mc := cfg.ManagerConfig()
	if mc.HandshakeTimeout != 7*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 7s", mc.HandshakeTimeout)
	}
	if mc.HeartbeatInterval != 20*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 20s", mc.HeartbeatInterval)
	}
	if mc.QueueCapacity != 42 {
		t.Errorf("QueueCapacity = %d, want 42", mc.QueueCapacity)
	}
	if mc.ReconnectBaseDelay != 500*time.Millisecond {
		t.Errorf("ReconnectBaseDelay = %v, want 500ms", mc.ReconnectBaseDelay)
	}
	if mc.ReconnectMaxExponent != 6 {
		t.Errorf("ReconnectMaxExponent = %d, want 6", mc.ReconnectMaxExponent)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
