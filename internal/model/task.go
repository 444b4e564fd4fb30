package model

// TaskContinuation is the bundle of identifiers that must be carried forward
// between messages in the same thread so the automation service keeps its
// conversation state attached.
type TaskContinuation struct {
	TaskID         string `json:"taskId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	FollowUpURL    string `json:"followUpUrl,omitempty"`
	LastMessageID  string `json:"lastMessageId,omitempty"`
}

// Merge applies non-empty fields from update on top of t. Fields absent from
// the update are preserved, so partial writes never drop previously known
// continuation data.
func (t *TaskContinuation) Merge(update TaskContinuation) {
	if update.TaskID != "" {
		t.TaskID = update.TaskID
	}
	if update.ConversationID != "" {
		t.ConversationID = update.ConversationID
	}
	if update.FollowUpURL != "" {
		t.FollowUpURL = update.FollowUpURL
	}
	if update.LastMessageID != "" {
		t.LastMessageID = update.LastMessageID
	}
}

// IsZero reports whether no continuation data is present.
func (t *TaskContinuation) IsZero() bool {
	return t.TaskID == "" && t.ConversationID == "" && t.FollowUpURL == "" && t.LastMessageID == ""
}

// PendingCallback is the asynchronous answer delivered by the automation
// service for a thread. At most one is pending per thread; a second callback
// arriving before the first is consumed overwrites it.
type PendingCallback struct {
	Content           string         `json:"content"`
	SchedulingDetails map[string]any `json:"schedulingDetails,omitempty"`
	ConversationID    string         `json:"conversationId,omitempty"`
	FollowUpURL       string         `json:"followUpUrl,omitempty"`
}

// Continuation extracts the continuation fields a callback may carry.
func (p *PendingCallback) Continuation() TaskContinuation {
	return TaskContinuation{
		ConversationID: p.ConversationID,
		FollowUpURL:    p.FollowUpURL,
	}
}
