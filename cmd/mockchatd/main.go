// mockchatd is a stand-in chat backend for exercising the client against
// a real socket: it enforces the authorization-first contract, answers
// pings, and streams a canned reply for every message.
// Usage: go run ./cmd/mockchatd -addr :8000 -reply "hello yourself"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/fishchat/chatlink/internal/version"
)

// closeUnauthorized is the close code the backend uses for clients that
// fail the authorization handshake.
const closeUnauthorized = 4001

type server struct {
	logger     *slog.Logger
	token      string // required bearer token; empty accepts any
	reply      string
	chunkSize  int
	chunkDelay time.Duration
	upgrader   websocket.Upgrader
}

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	token := flag.String("token", "", "require this exact bearer token (default: accept any)")
	reply := flag.String("reply", "This is a canned reply from mockchatd.", "assistant reply text")
	chunkDelay := flag.Duration("chunk-delay", 40*time.Millisecond, "delay between streamed chunks")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting mockchatd",
		"version", version.Version,
		"addr", *addr,
		"token_pinned", *token != "",
	)

	srv := &server{
		logger:     logger,
		token:      *token,
		reply:      *reply,
		chunkSize:  24,
		chunkDelay: *chunkDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat/", srv.handleChat)

	httpServer := &http.Server{Addr: *addr, Handler: mux}

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

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("mockchatd stopped")
}

// handleChat runs one client connection through the protocol.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	assistant, session, ok := parseChatPath(r.URL.Path)
	if !ok {
		http.Error(w, "bad chat path", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := s.logger.With("session", session)
	if assistant != "" {
		log = log.With("assistant", assistant)
	}
	log.Info("client connected", "remote", conn.RemoteAddr())

	if !s.authorize(conn, log) {
		return
	}

	if err := conn.WriteJSON(map[string]any{"type": "auth_success"}); err != nil {
		return
	}
	if err := conn.WriteJSON(cannedHistory()); err != nil {
		return
	}
	log.Info("client authorized")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("client disconnected", "error", err)
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			log.Debug("ignoring non-json payload")
			continue
		}

		switch envelope.Type {
		case "ping":
			if err := conn.WriteJSON(map[string]any{"type": "pong"}); err != nil {
				return
			}

		case "":
			// Business payloads carry no type field.
			var um struct {
				Message string `json:"message"`
			}
			json.Unmarshal(data, &um)
			log.Info("message received", "length", len(um.Message))

			if err := s.streamReply(conn); err != nil {
				log.Warn("stream failed", "error", err)
				msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream failed")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}

		default:
			log.Debug("ignoring frame", "type", envelope.Type)
		}
	}
}

// authorize enforces the authorization-first contract: the first frame
// must carry a well-formed bearer token, and match the pinned one when
// set. Failures close with 4001.
func (s *server) authorize(conn *websocket.Conn, log *slog.Logger) bool {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Warn("no authorization frame", "error", err)
		return false
	}

	var auth struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &auth); err != nil || auth.Type != "authorization" {
		s.reject(conn, log, "first frame must be authorization")
		return false
	}
	if !strings.HasPrefix(auth.Token, "Bearer ") {
		s.reject(conn, log, "malformed bearer token")
		return false
	}
	if s.token != "" && strings.TrimPrefix(auth.Token, "Bearer ") != s.token {
		s.reject(conn, log, "token mismatch")
		return false
	}
	return true
}

func (s *server) reject(conn *websocket.Conn, log *slog.Logger, reason string) {
	log.Warn("rejecting client", "reason", reason)
	msg := websocket.FormatCloseMessage(closeUnauthorized, "unauthorized")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// streamReply sends the configured reply as message chunks, then done.
func (s *server) streamReply(conn *websocket.Conn) error {
	for _, chunk := range chunkText(s.reply, s.chunkSize) {
		if err := conn.WriteJSON(map[string]any{"type": "message", "content": chunk}); err != nil {
			return err
		}
		if s.chunkDelay > 0 {
			time.Sleep(s.chunkDelay)
		}
	}
	return conn.WriteJSON(map[string]any{"type": "done", "success": true})
}

func cannedHistory() map[string]any {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]any{
		"type": "history",
		"messages": []map[string]any{
			{"role": "user", "content": "anyone there?", "timestamp": now},
			{"role": "assistant", "content": "mockchatd at your service.", "timestamp": now},
		},
	}
}

// parseChatPath splits /ws/chat/{session} or
// /ws/chat/{assistant}/{session} into its ids.
func parseChatPath(path string) (assistant, session string, ok bool) {
	rest := strings.TrimPrefix(path, "/ws/chat/")
	if rest == path {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(parts) {
	case 1:
		return "", parts[0], parts[0] != ""
	case 2:
		return parts[0], parts[1], parts[0] != "" && parts[1] != ""
	default:
		return "", "", false
	}
}

// chunkText splits text into runs of at most n runes.
func chunkText(text string, n int) []string {
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		k := n
		if k > len(runes) {
			k = len(runes)
		}
		chunks = append(chunks, string(runes[:k]))
		runes = runes[k:]
	}
	return chunks
}
