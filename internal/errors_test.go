package internal

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSessionExpiredError(t *testing.T) {
	clientSide := &SessionExpiredError{}
	if got := clientSide.Error(); got != "session expired: please log in again" {
		t.Errorf("client-side message = %q", got)
	}

	serverSide := &SessionExpiredError{FromServer: true}
	if got := serverSide.Error(); got != "authentication required: please log in again" {
		t.Errorf("server-side message = %q", got)
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Endpoint: "/auth/login", RetryAfter: 42 * time.Second}
	want := "rate limit exceeded for /auth/login: please try again in 42 seconds"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	// A sub-second retry window still tells the user to wait.
	immediate := &RateLimitError{Endpoint: "/chat", RetryAfter: 100 * time.Millisecond}
	want = "rate limit exceeded for /chat: please try again in 1 seconds"
	if got := immediate.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError(t *testing.T) {
	withDetail := &APIError{Op: "login", StatusCode: 401, Detail: "invalid email or password"}
	if got := withDetail.Error(); got != "login failed: invalid email or password" {
		t.Errorf("Error() = %q", got)
	}

	withoutDetail := &APIError{Op: "fetch models", StatusCode: 502}
	if got := withoutDetail.Error(); got != "fetch models failed: status 502" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDownloadError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := &DownloadError{URL: "https://example.com/x", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("DownloadError does not unwrap to its cause")
	}

	timeout := &DownloadError{URL: "https://example.com/x", Timeout: true}
	if got := timeout.Error(); got != "download timed out: https://example.com/x" {
		t.Errorf("timeout Error() = %q", got)
	}
}

func TestInstallError(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := &InstallError{Step: "copy application", PathsTried: []string{"/a", "/b"}, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("InstallError does not unwrap to its cause")
	}
	want := "install error [copy application]: permission denied (paths tried: /a, /b)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &InstallError{Step: "write config", Err: cause}
	if got := bare.Error(); got != "install error [write config]: permission denied" {
		t.Errorf("Error() without paths = %q", got)
	}
}
