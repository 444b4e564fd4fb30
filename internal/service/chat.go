package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bella-ai/chat-relay/internal/lindy"
	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
	"github.com/bella-ai/chat-relay/pkg/metrics"
)

// ErrCallbackTimeout is returned when no callback arrives within the wait
// window. The thread stays usable for the next message.
var ErrCallbackTimeout = errors.New("timed out waiting for callback response")

// WebhookSender sends one user message to the automation webhook.
type WebhookSender interface {
	Send(ctx context.Context, req *lindy.SendRequest) (*lindy.SendResponse, error)
}

// ChatService orchestrates one user message end to end: deduplicate,
// dispatch to the webhook, persist continuation updates, and wait for the
// asynchronous answer when the webhook did not answer inline.
type ChatService struct {
	store  store.Store
	sender WebhookSender
	waiter *Waiter
	logger *logger.Logger

	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewChatService creates a chat service.
func NewChatService(
	st store.Store,
	sender WebhookSender,
	waiter *Waiter,
	waitTimeout, pollInterval time.Duration,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		store:        st,
		sender:       sender,
		waiter:       waiter,
		logger:       log,
		waitTimeout:  waitTimeout,
		pollInterval: pollInterval,
	}
}

// HandleMessage processes one inbound user message. The caller guarantees a
// non-empty thread id and message body.
func (s *ChatService) HandleMessage(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	log := s.logger.WithThread(req.ThreadID)

	continuation, err := s.store.GetTask(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task data: %w", err)
	}

	// Duplicate delivery of the same message is an intentional no-op.
	if req.MessageID != "" && continuation != nil && continuation.LastMessageID == req.MessageID {
		metrics.DuplicatesSkippedTotal.Inc()
		log.Info("duplicate message skipped", zap.String("message_id", req.MessageID))
		return &model.ChatResponse{
			ThreadID: req.ThreadID,
			Status:   "skipped",
			Reason:   "duplicate",
		}, nil
	}

	// A callback left over from a previous exchange would satisfy this
	// message's wait with a stale answer. Consume it before dispatching.
	if stale, err := s.store.GetCallback(ctx, req.ThreadID); err == nil && stale != nil {
		if err := s.store.ClearCallback(ctx, req.ThreadID); err != nil {
			log.Warn("failed to clear stale callback", zap.Error(err))
		}
	}

	if req.TaskID != "" {
		if continuation == nil {
			continuation = &model.TaskContinuation{}
		}
		continuation.Merge(model.TaskContinuation{TaskID: req.TaskID})
	}

	resp, err := s.sender.Send(ctx, &lindy.SendRequest{
		ThreadID:          req.ThreadID,
		Message:           req.Text(),
		MessageID:         req.MessageID,
		UserName:          req.UserName,
		SchedulingDetails: req.SchedulingDetails,
		Continuation:      continuation,
	})
	if err != nil {
		return nil, err
	}

	// Best effort: a failure to record continuation data loses continuity
	// for the thread's next message, not this one.
	update := resp.Continuation()
	update.LastMessageID = req.MessageID
	if !update.IsZero() {
		if err := s.store.SetTask(ctx, req.ThreadID, update); err != nil {
			log.Warn("failed to store task data", zap.Error(err))
		}
	}

	if resp.Content != "" {
		log.Info("webhook answered synchronously")
		return &model.ChatResponse{
			Content:           resp.Content,
			ThreadID:          req.ThreadID,
			TaskID:            resp.TaskID,
			ConversationID:    resp.ConversationID,
			FollowUpURL:       resp.FollowUpURL,
			SchedulingDetails: resp.SchedulingDetails,
		}, nil
	}

	log.Info("awaiting callback", zap.Duration("timeout", s.waitTimeout))
	payload, err := s.waiter.Wait(ctx, req.ThreadID, s.waitTimeout, s.pollInterval)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrCallbackTimeout
	}

	if cont := payload.Continuation(); !cont.IsZero() {
		if err := s.store.SetTask(ctx, req.ThreadID, cont); err != nil {
			log.Warn("failed to store task data from callback", zap.Error(err))
		}
	}

	return &model.ChatResponse{
		Content:           payload.Content,
		ThreadID:          req.ThreadID,
		TaskID:            resp.TaskID,
		ConversationID:    firstNonEmpty(payload.ConversationID, resp.ConversationID),
		FollowUpURL:       firstNonEmpty(payload.FollowUpURL, resp.FollowUpURL),
		SchedulingDetails: payload.SchedulingDetails,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
