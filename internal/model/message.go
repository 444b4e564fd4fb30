// Package model defines data structures for the chat relay.
package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message. Messages are transient; they live only
// in the caller's message list and are never persisted by the relay.
type Message struct {
	Role              Role           `json:"role"`
	Content           string         `json:"content"`
	UserName          string         `json:"userName,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
}

// ChatRequest is the inbound request to send a user message. Content is an
// accepted alias for Message kept for older widget builds.
type ChatRequest struct {
	Message           string         `json:"message"`
	Content           string         `json:"content,omitempty"`
	ThreadID          string         `json:"threadId,omitempty"`
	MessageID         string         `json:"messageId,omitempty"`
	UserName          string         `json:"userName,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
}

// Text returns the message body, falling back to the legacy content field.
func (r *ChatRequest) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Content
}

// ChatResponse is the reply to a chat request.
type ChatResponse struct {
	Content           string         `json:"content,omitempty"`
	ThreadID          string         `json:"threadId,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	ConversationID    string         `json:"conversationId,omitempty"`
	FollowUpURL       string         `json:"followUpUrl,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
	Status            string         `json:"status,omitempty"`
	Reason            string         `json:"reason,omitempty"`
}

// CallbackRequest is the inbound callback body from the automation service.
// Message is an accepted alias for Content.
type CallbackRequest struct {
	ThreadID          string         `json:"threadId,omitempty"`
	Content           string         `json:"content,omitempty"`
	Message           string         `json:"message,omitempty"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
	ConversationID    string         `json:"conversationId,omitempty"`
	FollowUpURL       string         `json:"followUpUrl,omitempty"`
}

// Text returns the callback body, falling back to the legacy message field.
func (r *CallbackRequest) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Message
}
