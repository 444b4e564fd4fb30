// Package store provides the correlation store that maps a thread id to its
// task continuation data and at most one pending callback payload.
package store

import (
	"context"

	"github.com/bella-ai/chat-relay/internal/model"
)

// Store is the correlation store contract. Implementations are safe for
// concurrent use; operations on independent thread ids never contend. All
// operations are idempotent and safe to call for unknown thread ids.
type Store interface {
	// SetTask merge-writes continuation fields for a thread. Fields absent
	// from data are preserved, never dropped.
	SetTask(ctx context.Context, threadID string, data model.TaskContinuation) error

	// GetTask returns the continuation for a thread, or nil when unknown.
	GetTask(ctx context.Context, threadID string) (*model.TaskContinuation, error)

	// SetCallback overwrite-sets the pending callback for a thread. At most
	// one callback is pending per thread; a second callback before the first
	// is consumed replaces it. The entry expires after the callback TTL.
	SetCallback(ctx context.Context, threadID string, payload model.PendingCallback) error

	// GetCallback returns the pending callback, or nil when absent or
	// expired. It does not consume the entry.
	GetCallback(ctx context.Context, threadID string) (*model.PendingCallback, error)

	// ClearCallback deletes the pending callback for a thread.
	ClearCallback(ctx context.Context, threadID string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
