package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("message cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateThreadID validates a thread id. Thread ids are opaque strings, so
// only length and encoding are checked.
func ValidateThreadID(id string) error {
	if len(id) == 0 {
		return errors.New("threadId cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("threadId exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("threadId must be valid UTF-8")
	}
	return nil
}
