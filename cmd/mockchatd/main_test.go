package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testServerInstance() *server {
	return &server{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		reply:     "stream me please",
		chunkSize: 6,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func startTestServer(t *testing.T, srv *server) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat/", srv.handleChat)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dialChat(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	return frame
}

func TestHandleChat_AuthorizedFlow(t *testing.T) {
	ts := startTestServer(t, testServerInstance())
	conn := dialChat(t, ts, "/ws/chat/sess-1")

	if err := conn.WriteJSON(map[string]string{
		"type":  "authorization",
		"token": "Bearer any-token",
	}); err != nil {
		t.Fatalf("write authorization failed: %v", err)
	}

	if frame := readFrame(t, conn); frame["type"] != "auth_success" {
		t.Fatalf("first reply = %v, want auth_success", frame["type"])
	}

	history := readFrame(t, conn)
	if history["type"] != "history" {
		t.Fatalf("second reply = %v, want history", history["type"])
	}
	if msgs, ok := history["messages"].([]any); !ok || len(msgs) == 0 {
		t.Errorf("history messages = %v, want a canned dump", history["messages"])
	}

	if err := conn.WriteJSON(map[string]any{"message": "hi there"}); err != nil {
		t.Fatalf("write message failed: %v", err)
	}

	var content strings.Builder
	for {
		frame := readFrame(t, conn)
		switch frame["type"] {
		case "message":
			content.WriteString(frame["content"].(string))
		case "done":
			if frame["success"] != true {
				t.Errorf("done success = %v, want true", frame["success"])
			}
			if content.String() != "stream me please" {
				t.Errorf("streamed content = %q, want the configured reply", content.String())
			}
			return
		default:
			t.Fatalf("unexpected frame type %v", frame["type"])
		}
	}
}

func TestHandleChat_PingPong(t *testing.T) {
	ts := startTestServer(t, testServerInstance())
	conn := dialChat(t, ts, "/ws/chat/sess-1")

	conn.WriteJSON(map[string]string{"type": "authorization", "token": "Bearer x"})
	readFrame(t, conn) // auth_success
	readFrame(t, conn) // history

	if err := conn.WriteJSON(map[string]any{"type": "ping", "ts": 12345}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}

	if frame := readFrame(t, conn); frame["type"] != "pong" {
		t.Errorf("reply = %v, want pong", frame["type"])
	}
}

func TestHandleChat_RejectsWrongToken(t *testing.T) {
	srv := testServerInstance()
	srv.token = "sekrit"
	ts := startTestServer(t, srv)
	conn := dialChat(t, ts, "/ws/chat/sess-1")

	conn.WriteJSON(map[string]string{"type": "authorization", "token": "Bearer wrong"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, closeUnauthorized) {
		t.Errorf("read error = %v, want close %d", err, closeUnauthorized)
	}
}

func TestHandleChat_RejectsNonAuthFirstFrame(t *testing.T) {
	ts := startTestServer(t, testServerInstance())
	conn := dialChat(t, ts, "/ws/chat/sess-1")

	conn.WriteJSON(map[string]any{"message": "hi before auth"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, closeUnauthorized) {
		t.Errorf("read error = %v, want close %d", err, closeUnauthorized)
	}
}

func TestHandleChat_AssistantPath(t *testing.T) {
	ts := startTestServer(t, testServerInstance())
	conn := dialChat(t, ts, "/ws/chat/helper-bot/sess-9")

	conn.WriteJSON(map[string]string{"type": "authorization", "token": "Bearer x"})

	if frame := readFrame(t, conn); frame["type"] != "auth_success" {
		t.Errorf("reply = %v, want auth_success", frame["type"])
	}
}

func TestParseChatPath(t *testing.T) {
	tests := []struct {
		path          string
		wantAssistant string
		wantSession   string
		wantOK        bool
	}{
		{"/ws/chat/sess-1", "", "sess-1", true},
		{"/ws/chat/helper/sess-1", "helper", "sess-1", true},
		{"/ws/chat/sess-1/", "", "sess-1", true},
		{"/ws/chat/", "", "", false},
		{"/ws/chat/a/b/c", "", "", false},
		{"/other", "", "", false},
	}

	for _, tt := range tests {
		assistant, session, ok := parseChatPath(tt.path)
		if assistant != tt.wantAssistant || session != tt.wantSession || ok != tt.wantOK {
			t.Errorf("parseChatPath(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.path, assistant, session, ok, tt.wantAssistant, tt.wantSession, tt.wantOK)
		}
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want []string
	}{
		{"abcdef", 2, []string{"ab", "cd", "ef"}},
		{"abcde", 2, []string{"ab", "cd", "e"}},
		{"short", 100, []string{"short"}},
		{"", 4, nil},
		{"héllo wörld", 5, []string{"héllo", " wörl", "d"}},
	}

	for _, tt := range tests {
		got := chunkText(tt.text, tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("chunkText(%q, %d) = %v, want %v", tt.text, tt.n, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("chunkText(%q, %d)[%d] = %q, want %q", tt.text, tt.n, i, got[i], tt.want[i])
			}
		}
	}
}
