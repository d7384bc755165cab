package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fishchat/chatlink/internal/wire"
)

// Entry is one committed conversation turn.
type Entry struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
	Images    []string `json:"images,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Transcript is the on-disk layout of one session's record.
type Transcript struct {
	SessionID string  `json:"session_id"`
	SavedAt   string  `json:"saved_at"`
	Entries   []Entry `json:"entries"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Recorder accumulates one session's conversation. Safe for concurrent
// use; the connection manager delivers frames from its read loop while
// the caller records outbound messages.
type Recorder struct {
	dir       string
	sessionID string
	logger    *slog.Logger

	mu      sync.Mutex
	entries []Entry
	pending *Entry // assistant turn under assembly
}

// NewRecorder creates a recorder for one session. Files go under dir;
// the directory is created on the first Flush. logger may be nil.
func NewRecorder(dir, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		dir:       dir,
		sessionID: sessionID,
		logger:    logger,
	}
}

// RecordUser commits a user turn.
func (r *Recorder) RecordUser(content string, images ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: now(),
		Images:    images,
	})
}

// RecordFrame folds one inbound frame into the record. Message chunks
// accumulate into a pending assistant turn; done commits it; a history
// dump replaces the record with the server's copy. Frames that carry no
// conversation content are ignored.
func (r *Recorder) RecordFrame(f wire.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch f := f.(type) {
	case wire.History:
		r.entries = r.entries[:0]
		r.pending = nil
		for _, msg := range f.Messages {
			r.entries = append(r.entries, Entry{
				ID:        uuid.NewString(),
				Role:      msg.Role,
				Content:   msg.Content,
				Timestamp: msg.Timestamp,
				Images:    msg.Images,
			})
		}

	case wire.Message:
		if r.pending == nil {
			r.pending = &Entry{
				ID:        uuid.NewString(),
				Role:      RoleAssistant,
				Timestamp: now(),
			}
		}
		r.pending.Content += f.Content

	case wire.Done:
		r.finishLocked(f)
	}
}

// finishLocked commits the pending assistant turn for one done frame.
// Caller holds r.mu.
func (r *Recorder) finishLocked(done wire.Done) {
	entry := r.pending
	r.pending = nil

	if entry == nil {
		if done.Success {
			return
		}
		// The stream failed before producing any content; keep the
		// failure on record.
		entry = &Entry{
			ID:        uuid.NewString(),
			Role:      RoleAssistant,
			Timestamp: now(),
		}
	}
	if !done.Success && done.Error != "" {
		entry.Error = done.Error
	}
	r.entries = append(r.entries, *entry)

	// The server reports where it stored the user's uploads; attach
	// them to the turn they belong to.
	if len(done.SavedImages) > 0 {
		for i := len(r.entries) - 1; i >= 0; i-- {
			if r.entries[i].Role == RoleUser {
				r.entries[i].Images = done.SavedImages
				break
			}
		}
	}
}

// Entries returns a copy of the committed turns.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Flush writes the record to <dir>/<sessionID>.json via a temp file and
// rename, so readers never observe a partial write.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	snapshot := Transcript{
		SessionID: r.sessionID,
		SavedAt:   now(),
		Entries:   append([]Entry(nil), r.entries...),
	}
	r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".transcript-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	path := r.path()
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename transcript: %w", err)
	}

	r.logger.Debug("transcript flushed",
		"path", path,
		"entries", len(snapshot.Entries),
	)
	return nil
}

func (r *Recorder) path() string {
	return filepath.Join(r.dir, r.sessionID+".json")
}

// Load reads a previously flushed session record.
func Load(dir, sessionID string) (*Transcript, error) {
	data, err := os.ReadFile(filepath.Join(dir, sessionID+".json"))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &tr, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
