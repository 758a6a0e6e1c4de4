package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	historyFileName = "signin_history.json"
	hashFileName    = "balance_hash.txt"
)

// FileHistoryStore keeps the history map in a single JSON file under the
// data directory. Writes go through a temp-file + rename cycle so a crash
// mid-write never corrupts the committed file.
type FileHistoryStore struct {
	path string
}

// NewFileHistoryStore returns a file-backed history store rooted at dataDir.
func NewFileHistoryStore(dataDir string) *FileHistoryStore {
	return &FileHistoryStore{path: filepath.Join(dataDir, historyFileName)}
}

// Load reads the history map. A missing file is an empty history, not an
// error. Entries that fail to decode are dropped individually so one bad
// record does not discard the rest.
func (s *FileHistoryStore) Load() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	history := make(map[string]Record, len(raw))
	for key, value := range raw {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			continue
		}
		history[key] = rec
	}
	return history, nil
}

// Save atomically replaces the history file.
func (s *FileHistoryStore) Save(history map[string]Record) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return atomicWrite(s.path, data)
}

// FileBalanceHashStore keeps the balance hash in a one-line text file.
type FileBalanceHashStore struct {
	path string
}

// NewFileBalanceHashStore returns a file-backed hash store rooted at dataDir.
func NewFileBalanceHashStore(dataDir string) *FileBalanceHashStore {
	return &FileBalanceHashStore{path: filepath.Join(dataDir, hashFileName)}
}

// Load returns the stored hash, or "" when none has been saved yet.
func (s *FileBalanceHashStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read balance hash: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save atomically replaces the hash file.
func (s *FileBalanceHashStore) Save(hash string) error {
	return atomicWrite(s.path, []byte(hash))
}

// atomicWrite writes data to a temp file in the target directory, fsyncs it
// and renames it over path. Rename within one directory is atomic on POSIX
// filesystems.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
