package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultJSONFile is the legacy history file name.
const DefaultJSONFile = "notification_history.json"

// JSONFileStore keeps the whole history as one JSON array. Every Append
// loads the file, appends and rewrites it through a temp file + rename.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore returns a store backed by path. The file is created on
// first append.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("history file path is required")
	}
	return &JSONFileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string { return s.path }

// Append adds e at the end of the file. An unreadable history file is moved
// aside before a fresh list is written.
func (s *JSONFileStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102150405"))
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return fmt.Errorf("history file unreadable (%v) and could not be moved aside: %w", err, rerr)
		}
		entries = nil
	}
	entries = append(entries, e)
	return s.save(entries)
}

// List returns entries newest first.
func (s *JSONFileStore) List(ctx context.Context, opts ListOpts) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, opts.Limit), nil
}

// Close is a no-op.
func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) load() ([]Entry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *JSONFileStore) save(entries []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}
