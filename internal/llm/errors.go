package llm

import (
	"fmt"
	"net/http"
)

// TransientError marks a failure that is expected to succeed on retry:
// connection errors, timeouts, 5xx responses and rate-limit rejections.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix: bad credentials or a
// response that does not match the expected schema.
type FatalError struct {
	Provider string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Provider, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to the transient/fatal taxonomy.
// Auth and client errors are fatal; rate limits, timeouts and server
// errors are transient.
func classifyStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("api error %d: %s", status, string(body))
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return &TransientError{Provider: provider, Err: err}
	default:
		return &FatalError{Provider: provider, Err: err}
	}
}
