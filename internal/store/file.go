package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bella-ai/chat-relay/internal/model"
)

type fileTaskRecord struct {
	Data      model.TaskContinuation `json:"data"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

type fileCallbackRecord struct {
	Payload   model.PendingCallback `json:"payload"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

type fileDocument struct {
	Tasks     map[string]fileTaskRecord     `json:"tasks"`
	Callbacks map[string]fileCallbackRecord `json:"callbacks"`
}

// FileStore persists the correlation state as a single JSON document on
// disk. Every operation reads the document, applies the change, and writes it
// back under a mutex, so it is only suitable for a single process.
type FileStore struct {
	mu   sync.Mutex
	path string

	taskTTL     time.Duration
	callbackTTL time.Duration

	now func() time.Time
}

// NewFileStore creates a JSON-file-backed store at path, creating the parent
// directory if needed.
func NewFileStore(path string, taskTTL, callbackTTL time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		path:        path,
		taskTTL:     taskTTL,
		callbackTTL: callbackTTL,
		now:         time.Now,
	}, nil
}

// SetTask merge-writes continuation fields for a thread.
func (s *FileStore) SetTask(ctx context.Context, threadID string, data model.TaskContinuation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	rec, ok := doc.Tasks[threadID]
	if !ok || s.now().After(rec.ExpiresAt) {
		rec = fileTaskRecord{}
	}
	rec.Data.Merge(data)
	rec.ExpiresAt = s.now().Add(s.taskTTL)
	doc.Tasks[threadID] = rec
	return s.flush(doc)
}

// GetTask returns the continuation for a thread, or nil when unknown.
func (s *FileStore) GetTask(ctx context.Context, threadID string) (*model.TaskContinuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Tasks[threadID]
	if !ok || s.now().After(rec.ExpiresAt) {
		return nil, nil
	}
	data := rec.Data
	return &data, nil
}

// SetCallback overwrite-sets the pending callback for a thread.
func (s *FileStore) SetCallback(ctx context.Context, threadID string, payload model.PendingCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Callbacks[threadID] = fileCallbackRecord{
		Payload:   payload,
		ExpiresAt: s.now().Add(s.callbackTTL),
	}
	return s.flush(doc)
}

// GetCallback returns the pending callback, or nil when absent or expired.
func (s *FileStore) GetCallback(ctx context.Context, threadID string) (*model.PendingCallback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Callbacks[threadID]
	if !ok || s.now().After(rec.ExpiresAt) {
		return nil, nil
	}
	payload := rec.Payload
	return &payload, nil
}

// ClearCallback deletes the pending callback for a thread.
func (s *FileStore) ClearCallback(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Callbacks[threadID]; !ok {
		return nil
	}
	delete(doc.Callbacks, threadID)
	return s.flush(doc)
}

// Ping checks that the store directory is writable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

// load reads the document from disk. A missing file yields an empty document.
// Must be called with mu held.
func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{
		Tasks:     make(map[string]fileTaskRecord),
		Callbacks: make(map[string]fileCallbackRecord),
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = make(map[string]fileTaskRecord)
	}
	if doc.Callbacks == nil {
		doc.Callbacks = make(map[string]fileCallbackRecord)
	}
	return doc, nil
}

// flush writes the document atomically via a temp file rename. Must be called
// with mu held.
func (s *FileStore) flush(doc *fileDocument) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
