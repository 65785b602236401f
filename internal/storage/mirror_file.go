package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/model"
)

// FileMirror is a Mirror backed by a single JSON object on disk, one
// member per key. Every Set rewrites the whole file atomically.
type FileMirror struct {
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewFileMirror returns a Mirror backed by the JSON file at path.
func NewFileMirror(path string, log logger.Logger) *FileMirror {
	return &FileMirror{path: path, log: log}
}

func (m *FileMirror) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return []byte(value), nil
}

func (m *FileMirror) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("mirror value for %q is not valid JSON", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		// An unreadable mirror is replaced rather than blocking every write.
		m.log.Warn("discarding unreadable mirror file", logger.String("path", m.path), logger.Error(err))
		entries = make(map[string]json.RawMessage)
	}
	entries[key] = json.RawMessage(value)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}
	if err := atomicWriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

func (m *FileMirror) Close() error { return nil }

func (m *FileMirror) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode mirror %s: %w", m.path, err)
	}
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}
	return entries, nil
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it over filename.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-mirror-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	var success bool
	defer func() {
		if !success {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return err
	}
	success = true
	return nil
}
