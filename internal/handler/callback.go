package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
	"github.com/bella-ai/chat-relay/pkg/metrics"
)

// CallbackHandler receives asynchronous answers from the automation service
// and serves the polling endpoint older widget builds use instead of a
// blocking chat request.
type CallbackHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewCallbackHandler creates a new callback handler.
func NewCallbackHandler(st store.Store, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		store:  st,
		logger: log,
	}
}

// Receive handles POST /api/lindy/callback?threadId=
// The thread id comes from the query string, falling back to the JSON body.
// The payload is stored for the waiting request; it is never echoed back to
// the automation service.
func (h *CallbackHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		threadID = req.ThreadID
	}
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "missing threadId")
		return
	}

	content := req.Text()
	if content == "" {
		writeError(w, http.StatusBadRequest, "invalid callback payload: content is required")
		return
	}

	payload := model.PendingCallback{
		Content:           content,
		SchedulingDetails: req.SchedulingDetails,
		ConversationID:    req.ConversationID,
		FollowUpURL:       req.FollowUpURL,
	}

	if err := h.store.SetCallback(ctx, threadID, payload); err != nil {
		h.logger.Error("failed to store callback", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store callback")
		return
	}

	// Continuation data riding on the callback keeps the next message in
	// this thread attached to the same conversation upstream.
	if cont := payload.Continuation(); !cont.IsZero() {
		if err := h.store.SetTask(ctx, threadID, cont); err != nil {
			h.logger.Warn("failed to store task data from callback",
				zap.String("thread_id", threadID), zap.Error(err))
		}
	}

	metrics.CallbacksReceivedTotal.Inc()
	h.logger.Info("callback received", zap.String("thread_id", threadID))

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Check handles GET /api/lindy/callback/check?threadId=
// Returns the pending callback payload, consuming it, or a waiting status.
func (h *CallbackHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "missing threadId parameter")
		return
	}

	payload, err := h.store.GetCallback(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to read callback", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read callback")
		return
	}

	if payload == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "waiting"})
		return
	}

	if err := h.store.ClearCallback(ctx, threadID); err != nil {
		h.logger.Warn("failed to clear consumed callback",
			zap.String("thread_id", threadID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, payload)
}
