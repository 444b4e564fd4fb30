package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bella-ai/chat-relay/internal/model"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	s := NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryStore_SetTask_MergesAcrossCalls(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{TaskID: "task-1"}))
	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{FollowUpURL: "https://x/y"}))

	got, err := s.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, "https://x/y", got.FollowUpURL)
}

func TestMemoryStore_SetTask_LaterFieldOverrides(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{ConversationID: "conv-1"}))
	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{ConversationID: "conv-2"}))

	got, err := s.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "conv-2", got.ConversationID)
}

func TestMemoryStore_GetTask_UnknownThread(t *testing.T) {
	s := newTestMemoryStore(t)

	got, err := s.GetTask(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Callback_SetGetClear(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	payload := model.PendingCallback{
		Content:           "your meeting is booked",
		SchedulingDetails: map[string]any{"date": "2025-03-01"},
	}
	require.NoError(t, s.SetCallback(ctx, "T1", payload))

	got, err := s.GetCallback(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payload, *got)

	// GetCallback does not consume
	got, err = s.GetCallback(ctx, "T1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, s.ClearCallback(ctx, "T1"))
	got, err = s.GetCallback(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Callback_OverwritesPending(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCallback(ctx, "T1", model.PendingCallback{Content: "first"}))
	require.NoError(t, s.SetCallback(ctx, "T1", model.PendingCallback{Content: "second"}))

	got, err := s.GetCallback(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Content)
}

func TestMemoryStore_ClearCallback_UnknownThreadIsNoop(t *testing.T) {
	s := newTestMemoryStore(t)

	assert.NoError(t, s.ClearCallback(context.Background(), "nope"))
}

func TestMemoryStore_Callback_ExpiresAfterTTL(t *testing.T) {
	s := NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetCallback(ctx, "T1", model.PendingCallback{Content: "hi"}))

	s.now = func() time.Time { return now.Add(6 * time.Minute) }

	got, err := s.GetCallback(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Task_ExpiresAfterTTL(t *testing.T) {
	s := NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{TaskID: "task-1"}))

	s.now = func() time.Time { return now.Add(2 * time.Hour) }

	got, err := s.GetTask(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Sweep_RemovesExpiredEntries(t *testing.T) {
	s := NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetTask(ctx, "T1", model.TaskContinuation{TaskID: "task-1"}))
	require.NoError(t, s.SetCallback(ctx, "T1", model.PendingCallback{Content: "hi"}))

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	s.runSweep()

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.tasks)
	assert.Empty(t, s.callbacks)
}

func TestMemoryStore_IndependentThreads(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCallback(ctx, "T1", model.PendingCallback{Content: "one"}))
	require.NoError(t, s.SetCallback(ctx, "T2", model.PendingCallback{Content: "two"}))
	require.NoError(t, s.ClearCallback(ctx, "T1"))

	got, err := s.GetCallback(ctx, "T2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "two", got.Content)
}
