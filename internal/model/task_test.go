package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskContinuation_Merge_UnionOfFields(t *testing.T) {
	cont := TaskContinuation{}

	cont.Merge(TaskContinuation{TaskID: "task-1", ConversationID: "conv-1"})
	cont.Merge(TaskContinuation{FollowUpURL: "https://x/y", LastMessageID: "msg-1"})

	assert.Equal(t, "task-1", cont.TaskID)
	assert.Equal(t, "conv-1", cont.ConversationID)
	assert.Equal(t, "https://x/y", cont.FollowUpURL)
	assert.Equal(t, "msg-1", cont.LastMessageID)
}

func TestTaskContinuation_Merge_LaterFieldOverrides(t *testing.T) {
	cont := TaskContinuation{TaskID: "task-1", ConversationID: "conv-1"}

	cont.Merge(TaskContinuation{TaskID: "task-2"})

	assert.Equal(t, "task-2", cont.TaskID)
	assert.Equal(t, "conv-1", cont.ConversationID)
}

func TestTaskContinuation_Merge_EmptyUpdatePreservesFields(t *testing.T) {
	cont := TaskContinuation{TaskID: "task-1", FollowUpURL: "https://x/y"}

	cont.Merge(TaskContinuation{})

	assert.Equal(t, "task-1", cont.TaskID)
	assert.Equal(t, "https://x/y", cont.FollowUpURL)
}

func TestTaskContinuation_IsZero(t *testing.T) {
	assert.True(t, (&TaskContinuation{}).IsZero())
	assert.False(t, (&TaskContinuation{LastMessageID: "m"}).IsZero())
}

func TestPendingCallback_Continuation(t *testing.T) {
	payload := PendingCallback{
		Content:        "hi",
		ConversationID: "conv-1",
		FollowUpURL:    "https://x/y",
	}

	cont := payload.Continuation()
	assert.Equal(t, "conv-1", cont.ConversationID)
	assert.Equal(t, "https://x/y", cont.FollowUpURL)
	assert.Empty(t, cont.TaskID)
}
