// chatprobe connects to a chat backend, sends a message and streams the
// reply to the console.
// Usage: go run ./cmd/chatprobe --config configs/chatlink.example.yaml -message "hello"
//
// Tokens come from the credentials file named in the config; see
// configs/tokens.example.json for the layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fishchat/chatlink/internal/config"
	"github.com/fishchat/chatlink/internal/connection"
	"github.com/fishchat/chatlink/internal/creds"
	"github.com/fishchat/chatlink/internal/transcript"
	"github.com/fishchat/chatlink/internal/version"
	"github.com/fishchat/chatlink/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/chatlink.example.yaml", "path to config file")
	endpoint := flag.String("endpoint", "", "override the chat endpoint from the config")
	session := flag.String("session", "", "session id (default: a fresh uuid)")
	assistant := flag.String("assistant", "", "assistant id for assistant-backed sessions")
	message := flag.String("message", "hello from chatprobe", "message to send")
	count := flag.Int("count", 1, "times to send the message")
	authTimeout := flag.Duration("auth-timeout", 15*time.Second, "how long to wait for authorization")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting chatprobe",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.Chat.Endpoint = *endpoint
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Token store
	store, err := creds.Open(cfg.Credentials.Path, logger)
	if err != nil {
		logger.Error("failed to open token file", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Credentials.Watch {
		if err := store.Watch(); err != nil {
			logger.Warn("token watch unavailable", "error", err)
		}
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// An assistant-backed session carries the assistant id in the
	// endpoint path, ahead of the session id.
	endpointURL := strings.TrimRight(cfg.Chat.Endpoint, "/")
	mode := connection.ModeStandard
	if *assistant != "" {
		endpointURL += "/" + *assistant
		mode = connection.ModeAssistant
	}

	var recorder *transcript.Recorder
	if cfg.Transcript.Enabled {
		recorder = transcript.NewRecorder(cfg.Transcript.Dir, sessionID, logger)
	}

	mgr := connection.NewManager(cfg.ManagerConfig(), store, logger)

	doneCh := make(chan wire.Done, *count)
	mgr.SetHandler(connection.HandlerFuncs{
		Open: func() {
			logger.Info("connection open")
		},
		AuthSuccess: func() {
			logger.Info("authorized")
		},
		Frame: func(f wire.Frame) {
			if recorder != nil {
				recorder.RecordFrame(f)
			}
			switch f := f.(type) {
			case wire.History:
				logger.Info("history received", "messages", len(f.Messages))
			case wire.Message:
				fmt.Print(f.Content)
			case wire.Reference:
				logger.Debug("reference received")
			case wire.Audio:
				logger.Info("audio ready", "file", f.File)
			case wire.Done:
				fmt.Println()
				if f.Success {
					logger.Info("reply complete")
				} else {
					logger.Warn("reply failed", "error", f.Error)
				}
				select {
				case doneCh <- f:
				default:
				}
			case wire.Unknown:
				logger.Debug("unhandled frame", "type", f.Type)
			case wire.Opaque:
				logger.Debug("non-json frame", "payload", string(f.Payload()))
			}
		},
		Close: func(err error) {
			if err != nil {
				logger.Warn("connection closed", "error", err)
			} else {
				logger.Info("connection closed")
			}
		},
		Error: func(err error) {
			logger.Error("connection error", "error", err)
		},
	})

	mgr.UpdateSessionContext(connection.SessionContext{
		Endpoint:  endpointURL,
		SessionID: sessionID,
		Mode:      mode,
	})

	logger.Info("connecting",
		"endpoint", endpointURL,
		"session", sessionID,
		"mode", mode,
	)

	if !mgr.EnsureAuthorized(ctx, *authTimeout) {
		logger.Error("authorization timed out", "timeout", *authTimeout)
		mgr.Close()
		os.Exit(1)
	}

sendLoop:
	for i := 0; i < *count; i++ {
		if recorder != nil {
			recorder.RecordUser(*message)
		}
		if err := mgr.Send(wire.UserMessage{Message: *message}); err != nil {
			logger.Error("send failed", "error", err)
			break
		}

		select {
		case <-ctx.Done():
			break sendLoop
		case d := <-doneCh:
			if !d.Success {
				break sendLoop
			}
		}
	}

	stats := mgr.Stats()
	logger.Info("probe finished",
		"state", stats.State,
		"queue_depth", stats.QueueDepth,
		"dropped", stats.Dropped,
		"reconnect_attempts", stats.ReconnectAttempts,
	)

	mgr.Close()

	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			logger.Error("transcript flush failed", "error", err)
		} else {
			logger.Info("transcript saved", "dir", cfg.Transcript.Dir, "session", sessionID)
		}
	}

	logger.Info("chatprobe stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
