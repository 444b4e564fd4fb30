package store

import (
	"context"
	"sync"
	"time"

	"github.com/bella-ai/chat-relay/internal/model"
)

type taskEntry struct {
	data      model.TaskContinuation
	expiresAt time.Time
}

type callbackEntry struct {
	payload   model.PendingCallback
	expiresAt time.Time
}

// MemoryStore is a process-local correlation store. Entries expire lazily on
// read and are swept by a background goroutine.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]taskEntry
	callbacks map[string]callbackEntry

	taskTTL     time.Duration
	callbackTTL time.Duration

	now    func() time.Time
	done   chan struct{}
	closed bool
}

// NewMemoryStore creates an in-memory store with the given TTLs.
func NewMemoryStore(taskTTL, callbackTTL time.Duration) *MemoryStore {
	s := &MemoryStore{
		tasks:       make(map[string]taskEntry),
		callbacks:   make(map[string]callbackEntry),
		taskTTL:     taskTTL,
		callbackTTL: callbackTTL,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	go s.sweep()
	return s
}

// SetTask merge-writes continuation fields for a thread.
func (s *MemoryStore) SetTask(ctx context.Context, threadID string, data model.TaskContinuation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[threadID]
	if !ok || s.now().After(entry.expiresAt) {
		entry = taskEntry{}
	}
	entry.data.Merge(data)
	entry.expiresAt = s.now().Add(s.taskTTL)
	s.tasks[threadID] = entry
	return nil
}

// GetTask returns the continuation for a thread, or nil when unknown.
func (s *MemoryStore) GetTask(ctx context.Context, threadID string) (*model.TaskContinuation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[threadID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	data := entry.data
	return &data, nil
}

// SetCallback overwrite-sets the pending callback for a thread.
func (s *MemoryStore) SetCallback(ctx context.Context, threadID string, payload model.PendingCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callbacks[threadID] = callbackEntry{
		payload:   payload,
		expiresAt: s.now().Add(s.callbackTTL),
	}
	return nil
}

// GetCallback returns the pending callback, or nil when absent or expired.
func (s *MemoryStore) GetCallback(ctx context.Context, threadID string) (*model.PendingCallback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.callbacks[threadID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	payload := entry.payload
	return &payload, nil
}

// ClearCallback deletes the pending callback for a thread.
func (s *MemoryStore) ClearCallback(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.callbacks, threadID)
	return nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
	return nil
}

// sweep periodically removes expired entries so abandoned threads do not
// accumulate.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) runSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.tasks {
		if now.After(entry.expiresAt) {
			delete(s.tasks, id)
		}
	}
	for id, entry := range s.callbacks {
		if now.After(entry.expiresAt) {
			delete(s.callbacks, id)
		}
	}
}
