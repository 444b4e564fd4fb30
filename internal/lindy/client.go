// Package lindy provides the outbound client for the conversational
// automation webhook.
package lindy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/pkg/logger"
	"github.com/bella-ai/chat-relay/pkg/metrics"
)

// Config holds webhook client configuration.
type Config struct {
	// WebhookURL is the base webhook endpoint, used until a follow-up URL is
	// known for a thread.
	WebhookURL string

	// SecretKey is sent as a bearer token on every request.
	SecretKey string

	// PublicBaseURL is the externally reachable base URL of this service,
	// used to build the callback URL handed to the webhook.
	PublicBaseURL string

	// RetryAttempts is the number of additional attempts after a retryable
	// failure. Zero disables retrying.
	RetryAttempts int

	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
}

// Client sends user messages to the automation webhook.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a webhook client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// SendRequest carries one user message and the thread's continuation state.
type SendRequest struct {
	ThreadID          string
	Message           string
	MessageID         string
	UserName          string
	SchedulingDetails map[string]any
	Continuation      *model.TaskContinuation
}

// SendResponse is the webhook's answer. Content is present only when the
// automation answered synchronously; otherwise the answer arrives later via
// callback.
type SendResponse struct {
	Content           string         `json:"content,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	ConversationID    string         `json:"conversationId,omitempty"`
	FollowUpURL       string         `json:"followUpUrl,omitempty"`
	RequiresCallback  bool           `json:"requiresCallback,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
}

// Continuation extracts the continuation fields the response may carry.
func (r *SendResponse) Continuation() model.TaskContinuation {
	return model.TaskContinuation{
		TaskID:         r.TaskID,
		ConversationID: r.ConversationID,
		FollowUpURL:    r.FollowUpURL,
	}
}

// outboundPayload is the wire format sent to the webhook.
type outboundPayload struct {
	Message           string         `json:"message"`
	CallbackURL       string         `json:"callbackUrl"`
	TaskID            string         `json:"taskId,omitempty"`
	ConversationID    string         `json:"conversationId,omitempty"`
	MessageID         string         `json:"messageId,omitempty"`
	UserName          string         `json:"userName,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
	Source            string         `json:"source"`
}

// Send posts one user message to the webhook. Once a follow-up URL is known
// for the thread it is targeted instead of the base webhook URL so the
// automation keeps its conversation state attached.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	target, err := c.targetURL(req.Continuation)
	if err != nil {
		return nil, err
	}

	payload := outboundPayload{
		Message:           req.Message,
		CallbackURL:       c.callbackURL(req.ThreadID),
		MessageID:         req.MessageID,
		UserName:          req.UserName,
		SchedulingDetails: req.SchedulingDetails,
		Source:            string(model.RoleUser),
	}
	if req.Continuation != nil {
		payload.TaskID = req.Continuation.TaskID
		payload.ConversationID = req.Continuation.ConversationID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var resp *SendResponse
	operation := func() error {
		var opErr error
		resp, opErr = c.doSend(ctx, target, body)
		if opErr == nil {
			return nil
		}

		var upstream *UpstreamError
		if errors.As(opErr, &upstream) && upstream.Retryable() {
			c.logger.Warn("webhook call failed, will retry",
				zap.String("thread_id", req.ThreadID),
				zap.Int("status", upstream.StatusCode),
			)
			return opErr
		}
		var malformed *MalformedResponseError
		if errors.As(opErr, &malformed) {
			return backoff.Permanent(opErr)
		}
		if errors.As(opErr, &upstream) {
			return backoff.Permanent(opErr)
		}
		// Network-level failure: retryable.
		return opErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.cfg.RetryDelay),
			uint64(c.cfg.RetryAttempts),
		),
		ctx,
	)

	start := time.Now()
	err = backoff.Retry(operation, policy)
	if err != nil {
		metrics.RecordWebhookCall("error", time.Since(start).Seconds())
		return nil, err
	}

	metrics.RecordWebhookCall("success", time.Since(start).Seconds())
	return resp, nil
}

// doSend performs a single HTTP attempt.
func (c *Client) doSend(ctx context.Context, target string, body []byte) (*SendResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Body:       string(raw),
		}
	}

	var resp SendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	return &resp, nil
}

// targetURL selects the follow-up URL when known, else the base webhook URL
// with the conversation id attached as a query parameter when one exists.
func (c *Client) targetURL(continuation *model.TaskContinuation) (string, error) {
	if continuation != nil && continuation.FollowUpURL != "" {
		return continuation.FollowUpURL, nil
	}

	if continuation == nil || continuation.ConversationID == "" {
		return c.cfg.WebhookURL, nil
	}

	u, err := url.Parse(c.cfg.WebhookURL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook URL: %w", err)
	}
	q := u.Query()
	q.Set("conversationId", continuation.ConversationID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// callbackURL builds the callback endpoint handed to the webhook.
func (c *Client) callbackURL(threadID string) string {
	return fmt.Sprintf("%s/api/lindy/callback?threadId=%s", c.cfg.PublicBaseURL, url.QueryEscape(threadID))
}
