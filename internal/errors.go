package internal

import (
	"fmt"
	"strings"
	"time"
)

// SessionExpiredError indicates the client session is no longer valid.
// FromServer distinguishes a server-signaled 401 from a client-side
// pre-flight expiry check.
type SessionExpiredError struct {
	FromServer bool
}

func (e *SessionExpiredError) Error() string {
	if e.FromServer {
		return "authentication required: please log in again"
	}
	return "session expired: please log in again"
}

// RateLimitError indicates a client-side rate limit rejection. RetryAfter
// is derived from the window's reset time and is always set.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	secs := int(e.RetryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("rate limit exceeded for %s: please try again in %d seconds", e.Endpoint, secs)
}

// TimeoutError indicates a client-side request timeout, distinct from
// connection failures so callers can offer a retry.
type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %s", e.URL)
}

// APIError represents a non-2xx HTTP response, refined by the server's
// detail message when present.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
}

// DownloadError represents a failed artifact download. Timeout marks a
// stalled transfer as opposed to a protocol or disk failure.
type DownloadError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("download timed out: %s", e.URL)
	}
	return fmt.Sprintf("download failed: %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// InstallError represents a fatal installation failure. PathsTried carries
// the filesystem paths that were probed, to aid manual recovery.
type InstallError struct {
	Step       string
	PathsTried []string
	Err        error
}

func (e *InstallError) Error() string {
	if len(e.PathsTried) > 0 {
		return fmt.Sprintf("install error [%s]: %v (paths tried: %s)", e.Step, e.Err, strings.Join(e.PathsTried, ", "))
	}
	return fmt.Sprintf("install error [%s]: %v", e.Step, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
