// Package creds resolves bearer tokens for chat endpoints from a local
// token file and keeps them fresh while the process runs.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrTokenNotFound means the token file has no entry for the requested
// host and no default entry either.
var ErrTokenNotFound = errors.New("token not found")

// DefaultHost is the fallback lookup key consulted when no entry
// matches the endpoint host.
const DefaultHost = "default"

// reloadDebounce coalesces the burst of filesystem events editors and
// atomic-rename writers produce for a single save.
const reloadDebounce = 200 * time.Millisecond

// tokenFile mirrors the on-disk layout.
type tokenFile struct {
	Tokens map[string]string `json:"tokens"`
}

// Store resolves bearer tokens by endpoint host. Lookups are safe for
// concurrent use with a running watcher.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	tokens map[string]string

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
}

// Open reads and parses the token file at path. The logger may be nil.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the bearer token for the endpoint's host. The lookup
// tries the host with port, then without, then the default entry.
func (s *Store) Token(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if token, ok := s.tokens[u.Host]; ok {
		return token, nil
	}
	if token, ok := s.tokens[u.Hostname()]; ok {
		return token, nil
	}
	if token, ok := s.tokens[DefaultHost]; ok {
		return token, nil
	}
	return "", fmt.Errorf("%w for host %q", ErrTokenNotFound, u.Host)
}

// Hosts returns the lookup keys currently loaded, sorted.
func (s *Store) Hosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hosts := make([]string, 0, len(s.tokens))
	for h := range s.tokens {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// reload re-reads the token file, replacing the in-memory set only on
// success.
func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}

	s.mu.Lock()
	s.tokens = f.Tokens
	s.mu.Unlock()
	return nil
}

// Watch reloads the token file whenever it changes, until the store is
// closed. The watch is on the containing directory because editors and
// atomic writers replace the file rather than writing in place.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.watcher = watcher
	go s.watchLoop()

	s.logger.Debug("watching token file", "path", s.path)
	return nil
}

func (s *Store) watchLoop() {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	base := filepath.Base(s.path)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Stop()
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("token watcher error", "error", err)

		case <-pending:
			pending = nil
			if err := s.reload(); err != nil {
				// Keep serving the previous tokens.
				s.logger.Warn("token reload failed", "error", err)
				continue
			}
			s.logger.Info("tokens reloaded", "path", s.path)
		}
	}
}

// Close stops the watcher if one is running. Idempotent.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
