package riot

import (
	"context"
	"errors"
	"fmt"
)

// Provider error kinds. Only ErrAuthRejected and ErrProviderUnavailable ever
// leave the client; rate limiting and transient failures are retried inside it.
var (
	ErrAuthRejected        = errors.New("auth rejected")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrTransient           = errors.New("transient provider error")
)

// StatusError carries a non-2xx response from the provider.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d for %s", e.StatusCode, e.URL)
}

// Err joins a typed error kind with its cause and an optional message.
func Err(kind error, cause error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(kind, cause)
	}
	return errors.Join(kind, cause, fmt.Errorf(msgTemplate, args...))
}

// Kind names the error kind for summaries and notifications.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRejected):
		return "AuthRejected"
	case errors.Is(err, ErrProviderUnavailable):
		return "ProviderUnavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "Internal"
	}
}
