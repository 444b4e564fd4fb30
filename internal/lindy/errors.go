package lindy

import "fmt"

// UpstreamError is returned when the webhook answers with a non-2xx status.
// The response body is captured for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure class is worth retrying. Server
// errors and rate limiting are transient; other client errors are not.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// MalformedResponseError is returned when the webhook answers 2xx but the
// body is not the expected JSON shape.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed webhook response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
