// Package handler provides HTTP handlers for the relay API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bella-ai/chat-relay/internal/lindy"
	"github.com/bella-ai/chat-relay/internal/middleware"
	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/service"
	"github.com/bella-ai/chat-relay/pkg/logger"
)

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: svc,
		logger:      log,
	}
}

// Send handles POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Text()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ThreadID == "" {
		req.ThreadID = uuid.New().String()
	} else if err := middleware.ValidateThreadID(req.ThreadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.HandleMessage(ctx, &req)
	if err != nil {
		h.writeServiceError(w, req.ThreadID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps orchestration failures to HTTP statuses. Timeouts
// are surfaced as retryable, not fatal.
func (h *ChatHandler) writeServiceError(w http.ResponseWriter, threadID string, err error) {
	log := h.logger.WithThread(threadID)

	var upstream *lindy.UpstreamError
	if errors.As(err, &upstream) {
		log.Error("webhook call failed", zap.Int("status", upstream.StatusCode))
		writeErrorDetails(w, http.StatusBadGateway, "failed to get response from automation service", upstream.Body)
		return
	}

	var malformed *lindy.MalformedResponseError
	if errors.As(err, &malformed) {
		log.Error("webhook returned malformed response", zap.Error(err))
		writeError(w, http.StatusBadGateway, "automation service returned an unexpected response")
		return
	}

	if errors.Is(err, service.ErrCallbackTimeout) {
		writeError(w, http.StatusGatewayTimeout, "timeout waiting for response")
		return
	}

	log.Error("failed to process message", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to process message")
}
