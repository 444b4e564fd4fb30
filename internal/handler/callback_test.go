package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
)

func newCallbackTestHandler(t *testing.T) (*CallbackHandler, *store.MemoryStore) {
	st := store.NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { st.Close() })
	return NewCallbackHandler(st, logger.NewNop()), st
}

func TestCallbackReceive_MissingThreadID(t *testing.T) {
	h, _ := newCallbackTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing threadId")
}

func TestCallbackReceive_EmptyBodyRejected(t *testing.T) {
	h, _ := newCallbackTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback?threadId=T1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid callback payload")
}

func TestCallbackReceive_StoresPayload(t *testing.T) {
	h, st := newCallbackTestHandler(t)

	body := `{"content":"your meeting is booked","schedulingDetails":{"date":"2025-03-01"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback?threadId=T1", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["success"])
	// the payload is never echoed back to the caller
	assert.NotContains(t, rec.Body.String(), "your meeting is booked")

	payload, err := st.GetCallback(context.Background(), "T1")
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, "your meeting is booked", payload.Content)
	assert.Equal(t, map[string]any{"date": "2025-03-01"}, payload.SchedulingDetails)
}

func TestCallbackReceive_ThreadIDFromBodyFallback(t *testing.T) {
	h, st := newCallbackTestHandler(t)

	body := `{"threadId":"T2","content":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payload, err := st.GetCallback(context.Background(), "T2")
	require.NoError(t, err)
	require.NotNil(t, payload)
}

func TestCallbackReceive_LegacyMessageField(t *testing.T) {
	h, st := newCallbackTestHandler(t)

	body := `{"message":"legacy format"}`
	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback?threadId=T1", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payload, err := st.GetCallback(context.Background(), "T1")
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, "legacy format", payload.Content)
}

func TestCallbackReceive_UpdatesTaskContinuation(t *testing.T) {
	h, st := newCallbackTestHandler(t)
	ctx := context.Background()
	require.NoError(t, st.SetTask(ctx, "T1", model.TaskContinuation{TaskID: "task-1"}))

	body := `{"content":"done","conversationId":"conv-1","followUpUrl":"https://x/y"}`
	req := httptest.NewRequest(http.MethodPost, "/api/lindy/callback?threadId=T1", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	task, err := st.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, task)
	// merged, not overwritten
	assert.Equal(t, "task-1", task.TaskID)
	assert.Equal(t, "conv-1", task.ConversationID)
	assert.Equal(t, "https://x/y", task.FollowUpURL)
}

func TestCallbackCheck_MissingThreadID(t *testing.T) {
	h, _ := newCallbackTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/lindy/callback/check", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackCheck_Waiting(t *testing.T) {
	h, _ := newCallbackTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/lindy/callback/check?threadId=T1", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "waiting", resp["status"])
}

func TestCallbackCheck_ReturnsAndConsumesPayload(t *testing.T) {
	h, st := newCallbackTestHandler(t)
	ctx := context.Background()
	require.NoError(t, st.SetCallback(ctx, "T1", model.PendingCallback{Content: "here you go"}))

	req := httptest.NewRequest(http.MethodGet, "/api/lindy/callback/check?threadId=T1", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload model.PendingCallback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "here you go", payload.Content)

	remaining, err := st.GetCallback(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, remaining)
}
