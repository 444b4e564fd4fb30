// Package service provides business logic for the chat relay.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
	"github.com/bella-ai/chat-relay/pkg/metrics"
)

// Waiter blocks a request flow until the callback payload for its thread
// appears in the correlation store, polling at a fixed interval. The wait
// suspends only the calling goroutine; the rest of the process keeps serving.
type Waiter struct {
	store  store.Store
	logger *logger.Logger
}

// NewWaiter creates a callback waiter.
func NewWaiter(st store.Store, log *logger.Logger) *Waiter {
	return &Waiter{
		store:  st,
		logger: log,
	}
}

// Wait polls the store every pollInterval until a callback payload appears,
// the timeout elapses, or ctx is canceled. A found payload is consumed
// (cleared from the store) and returned. Timeout returns (nil, nil); callers
// map that to a "no response" outcome, not a failure.
func (w *Waiter) Wait(ctx context.Context, threadID string, timeout, pollInterval time.Duration) (*model.PendingCallback, error) {
	metrics.IncrementWaiters()
	defer metrics.DecrementWaiters()

	if payload := w.consume(ctx, threadID); payload != nil {
		metrics.RecordWait("delivered")
		return payload, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			metrics.RecordWait("canceled")
			return nil, ctx.Err()

		case <-deadline.C:
			metrics.RecordWait("timeout")
			w.logger.Info("callback wait timed out",
				zap.String("thread_id", threadID),
				zap.Duration("timeout", timeout),
			)
			return nil, nil

		case <-ticker.C:
			if payload := w.consume(ctx, threadID); payload != nil {
				metrics.RecordWait("delivered")
				return payload, nil
			}
		}
	}
}

// consume reads and clears the pending callback for a thread. Backend errors
// are logged and treated as "not yet" so a transient store failure does not
// abort the wait.
func (w *Waiter) consume(ctx context.Context, threadID string) *model.PendingCallback {
	payload, err := w.store.GetCallback(ctx, threadID)
	if err != nil {
		w.logger.Warn("failed to poll callback store",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return nil
	}
	if payload == nil {
		return nil
	}

	if err := w.store.ClearCallback(ctx, threadID); err != nil {
		w.logger.Warn("failed to clear consumed callback",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
	}
	return payload
}
