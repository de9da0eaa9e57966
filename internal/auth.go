package internal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
)

// Password strength classifications.
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// Auth composes the session manager and token storage, and exposes header
// construction for API requests.
type Auth struct {
	sessions *SessionManager
	store    Store
	tokens   Store
}

// NewAuth creates the auth facade over the session manager and stores.
func NewAuth(sessions *SessionManager, persistent, scoped Store) *Auth {
	return &Auth{
		sessions: sessions,
		store:    persistent,
		tokens:   scoped,
	}
}

// IsAuthenticated reports whether a valid session exists.
func (a *Auth) IsAuthenticated() bool {
	return a.sessions.IsValid()
}

// UserID returns the cached user id, if any.
func (a *Auth) UserID() string {
	return a.sessions.UserID()
}

// AuthToken returns the bearer token from process-scoped storage. A legacy
// token found in persistent storage is migrated on first read and the
// persistent copy deleted; the migration happens at most once.
func (a *Auth) AuthToken() string {
	if token, ok := a.tokens.Get(KeyAuthToken); ok && token != "" {
		return token
	}

	legacy, ok := a.store.Get(KeyAuthToken)
	if !ok || legacy == "" {
		return ""
	}
	if err := a.tokens.Set(KeyAuthToken, legacy); err != nil {
		LogDebug("token migration failed: %v", err)
	}
	if err := a.store.Delete(KeyAuthToken); err != nil {
		LogDebug("legacy token cleanup failed: %v", err)
	}
	return legacy
}

// AuthHeaders builds the headers applied to authenticated API requests.
func (a *Auth) AuthHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	if userID := a.UserID(); userID != "" {
		headers["X-User-ID"] = userID
	}
	if token := a.AuthToken(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	return headers
}

// TokenExpiry decodes the bearer token's expiry claim without verifying the
// signature. Verification is the server's job; this is display-only.
func (a *Auth) TokenExpiry() (time.Time, error) {
	token := a.AuthToken()
	if token == "" {
		return time.Time{}, fmt.Errorf("no auth token present")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}

	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}
	return expiry.Time, nil
}

// PasswordValidation is the result of a password strength check.
type PasswordValidation struct {
	Valid    bool
	Errors   []string
	Strength string
	Score    int
}

var forbiddenSubstrings = []string{"password", "123456", "qwerty"}

// ValidatePassword scores a password and collects human-readable reasons it
// was rejected. Character-class errors are only reported once the minimum
// length is met, to avoid piling redundant errors on a too-short password.
func ValidatePassword(password string) PasswordValidation {
	var errors []string
	score := 0
	length := len(password)
	minLengthMet := length >= 8

	if !minLengthMet {
		errors = append(errors, "Password must be at least 8 characters long")
	} else {
		score++
		if length >= 12 {
			score++
		}
	}
	if length > 128 {
		errors = append(errors, "Password must be less than 128 characters")
	}

	checks := []struct {
		present bool
		reason  string
	}{
		{strings.IndexFunc(password, unicode.IsUpper) >= 0, "Password should contain at least one uppercase letter"},
		{strings.IndexFunc(password, unicode.IsLower) >= 0, "Password should contain at least one lowercase letter"},
		{strings.ContainsAny(password, "0123456789"), "Password should contain at least one number"},
		{hasSpecialChar(password), "Password should contain at least one special character"},
	}
	for _, check := range checks {
		if check.present {
			score++
		} else if minLengthMet {
			errors = append(errors, check.reason)
		}
	}

	if hasCommonPattern(password) {
		errors = append(errors, "Password contains common patterns that are easy to guess")
	}

	strength := StrengthWeak
	switch {
	case score >= 5 && length >= 12:
		strength = StrengthStrong
	case score >= 3 && length >= 8:
		strength = StrengthMedium
	}

	return PasswordValidation{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Strength: strength,
		Score:    score,
	}
}

func hasSpecialChar(password string) bool {
	for _, r := range password {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// hasCommonPattern detects easily guessed structure: 3+ repeated identical
// characters, ascending numeric or alphabetic runs of length 3, or known
// weak substrings.
func hasCommonPattern(password string) bool {
	runes := []rune(password)
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == runes[i+1] && runes[i] == runes[i+2] {
			return true
		}
	}

	lower := strings.ToLower(password)
	for i := 0; i+2 < len(lower); i++ {
		a, b, c := lower[i], lower[i+1], lower[i+2]
		if a >= '0' && a <= '7' && b == a+1 && c == a+2 {
			return true
		}
		if a >= 'a' && a <= 'x' && b == a+1 && c == a+2 {
			return true
		}
	}
	// "890" is ascending on the keyboard row but wraps numerically.
	if strings.Contains(lower, "890") {
		return true
	}

	for _, sub := range forbiddenSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// IsValidEmail does a permissive structural check: exactly one @ with a dot
// somewhere after it. Deliberately not RFC-exhaustive.
func IsValidEmail(email string) bool {
	if strings.ContainsAny(email, " \t\n") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

// SanitizeInput strips script blocks and any remaining tag-like substrings,
// then trims. Defense in depth only; the primary XSS defense is server-side.
func SanitizeInput(input string) string {
	cleaned := scriptBlockPattern.ReplaceAllString(input, "")
	cleaned = tagPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
