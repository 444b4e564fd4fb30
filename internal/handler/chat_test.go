package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bella-ai/chat-relay/internal/lindy"
	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/service"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
)

// stubSender implements service.WebhookSender for handler tests.
type stubSender struct {
	mu    sync.Mutex
	calls int
	resp  *lindy.SendResponse
	err   error
}

func (s *stubSender) Send(ctx context.Context, req *lindy.SendRequest) (*lindy.SendResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newChatTestHandler(t *testing.T, sender *stubSender) (*ChatHandler, *store.MemoryStore) {
	st := store.NewMemoryStore(time.Hour, 5*time.Minute)
	t.Cleanup(func() { st.Close() })

	log := logger.NewNop()
	waiter := service.NewWaiter(st, log)
	svc := service.NewChatService(st, sender, waiter, 200*time.Millisecond, 20*time.Millisecond, log)
	return NewChatHandler(svc, log), st
}

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Send(rec, req)
	return rec
}

func TestChatSend_InvalidBody(t *testing.T) {
	h, _ := newChatTestHandler(t, &stubSender{})

	rec := postChat(h, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSend_EmptyMessage(t *testing.T) {
	h, _ := newChatTestHandler(t, &stubSender{})

	rec := postChat(h, `{"threadId":"T1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message cannot be empty")
}

func TestChatSend_GeneratesThreadIDWhenAbsent(t *testing.T) {
	h, _ := newChatTestHandler(t, &stubSender{resp: &lindy.SendResponse{Content: "hi back"}})

	rec := postChat(h, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hi back", resp.Content)
	assert.NotEmpty(t, resp.ThreadID)
}

func TestChatSend_LegacyContentField(t *testing.T) {
	h, _ := newChatTestHandler(t, &stubSender{resp: &lindy.SendResponse{Content: "ok"}})

	rec := postChat(h, `{"content":"hi","threadId":"T1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatSend_DuplicateMessage(t *testing.T) {
	sender := &stubSender{resp: &lindy.SendResponse{Content: "ok"}}
	h, st := newChatTestHandler(t, sender)
	require.NoError(t, st.SetTask(context.Background(), "T1", model.TaskContinuation{LastMessageID: "msg-1"}))

	rec := postChat(h, `{"message":"hi","threadId":"T1","messageId":"msg-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "skipped", resp.Status)
	assert.Equal(t, "duplicate", resp.Reason)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 0, sender.calls)
}

func TestChatSend_UpstreamErrorMapsToBadGateway(t *testing.T) {
	sender := &stubSender{err: &lindy.UpstreamError{StatusCode: 500, Body: "internal failure"}}
	h, _ := newChatTestHandler(t, sender)

	rec := postChat(h, `{"message":"hi","threadId":"T1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal failure")
}

func TestChatSend_MalformedResponseMapsToBadGateway(t *testing.T) {
	sender := &stubSender{err: &lindy.MalformedResponseError{Err: assert.AnError}}
	h, _ := newChatTestHandler(t, sender)

	rec := postChat(h, `{"message":"hi","threadId":"T1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChatSend_TimeoutMapsToGatewayTimeout(t *testing.T) {
	sender := &stubSender{resp: &lindy.SendResponse{RequiresCallback: true}}
	h, _ := newChatTestHandler(t, sender)

	rec := postChat(h, `{"message":"hi","threadId":"T1"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeout waiting for response")
}

func TestChatSend_AnswerViaCallback(t *testing.T) {
	sender := &stubSender{resp: &lindy.SendResponse{RequiresCallback: true}}
	h, st := newChatTestHandler(t, sender)

	go func() {
		time.Sleep(60 * time.Millisecond)
		st.SetCallback(context.Background(), "T1", model.PendingCallback{Content: "async answer"})
	}()

	rec := postChat(h, `{"message":"hi","threadId":"T1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "async answer", resp.Content)
	assert.Equal(t, "T1", resp.ThreadID)
}
