// Package snapshot keeps the most recent raw webhook payloads on disk for
// debugging integrations.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	LastFile    = "last_webhook.json"
	HistoryFile = "webhooks_history.json"

	DefaultLimit = 3
)

// Entry is one element of the history file.
type Entry struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Body       json.RawMessage `json:"body"`
}

// Store writes payload snapshots under Dir. The zero value is not usable;
// use New.
type Store struct {
	dir   string
	limit int
	now   func() time.Time

	mu sync.Mutex
}

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dir string, limit int, opts ...Option) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{dir: dir, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

// Record saves raw as the last payload and appends it to the history,
// keeping only the newest entries. Bodies that are not JSON are stored as a
// JSON string.
func (s *Store) Record(raw []byte) error {
	body := asJSON(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	pretty, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("encode last snapshot: %w", err)
	}
	if err := writeFile(filepath.Join(s.dir, LastFile), pretty); err != nil {
		return err
	}

	history, err := s.load()
	if err != nil {
		return err
	}
	history = append(history, Entry{ReceivedAt: s.now().UTC(), Body: body})
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return writeFile(filepath.Join(s.dir, HistoryFile), data)
}

// History returns the stored entries, oldest first.
func (s *Store) History() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the history file. A missing or corrupt file starts a fresh
// history.
func (s *Store) load() ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, HistoryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func asJSON(raw []byte) json.RawMessage {
	if len(raw) > 0 && json.Valid(raw) {
		return json.RawMessage(append([]byte(nil), raw...))
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

// writeFile replaces path atomically so readers never see a partial file.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
