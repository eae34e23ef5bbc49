// Package history keeps a bounded, most-recent-first log of verdicts.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

// DefaultMaxEntries bounds the log
const DefaultMaxEntries = 250

// ErrCorrupt is returned when the history file cannot be decoded
var ErrCorrupt = errors.New("history file is corrupt")

// Store is an append-only bounded verdict log
type Store interface {
	Append(entry model.HistoryEntry) error
	List(limit int) ([]model.HistoryEntry, error)
}

type fileFormat struct {
	History []json.RawMessage `json:"history"`
}

// FileStore persists the log as JSON. Legacy records are migrated the first
// time the file is loaded. Safe for concurrent use within one process.
type FileStore struct {
	path       string
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	loaded  bool
	entries []model.HistoryEntry
}

// NewFileStore creates a store backed by path
func NewFileStore(path string, maxEntries int, logger *slog.Logger) *FileStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:       path,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// Append records entry as the newest item, dropping the oldest past the bound
func (s *FileStore) Append(entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	s.entries = append([]model.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
	return s.save()
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *FileStore) List(limit int) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	return head(s.entries, limit), nil
}

// Migrate rewrites legacy records on disk and reports whether anything changed
func (s *FileStore) Migrate() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = false
	raw, err := s.readRaw()
	if err != nil {
		return false, err
	}
	entries, changed, err := MigrateEntries(raw, s.now())
	if err != nil {
		return false, err
	}
	s.entries = entries
	s.loaded = true

	if changed {
		return true, s.save()
	}
	return false, nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	raw, err := s.readRaw()
	if err != nil {
		return err
	}
	entries, changed, err := MigrateEntries(raw, s.now())
	if err != nil {
		return err
	}
	s.entries = entries
	s.loaded = true

	if changed {
		s.logger.Info("migrated legacy history entries", "path", s.path)
		return s.save()
	}
	return nil
}

// readRaw accepts both {"history":[...]} and a bare array
func (s *FileStore) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return arr, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f.History, nil
}

func (s *FileStore) save() error {
	raw := make([]json.RawMessage, 0, len(s.entries))
	for _, e := range s.entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		raw = append(raw, b)
	}

	data, err := json.MarshalIndent(fileFormat{History: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}

// MemoryStore keeps the log in memory only
type MemoryStore struct {
	maxEntries int

	mu      sync.Mutex
	entries []model.HistoryEntry
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{maxEntries: maxEntries}
}

// Append records entry as the newest item
func (s *MemoryStore) Append(entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]model.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
	return nil
}

// List returns up to limit entries, newest first
func (s *MemoryStore) List(limit int) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return head(s.entries, limit), nil
}

func head(entries []model.HistoryEntry, limit int) []model.HistoryEntry {
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]model.HistoryEntry, limit)
	copy(out, entries[:limit])
	return out
}
