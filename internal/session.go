package internal

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// SessionDuration is the fixed wall-clock lifetime of a session. Expiry is
// not sliding by default; extension is an explicit operation.
const SessionDuration = 24 * time.Hour

const (
	sessionAuthenticated = "authenticated"
	monitorInterval      = time.Minute
	extendThrottle       = 30 * time.Second
)

// UserData carries the profile fields persisted when a session is created.
type UserData struct {
	ID          string
	Email       string
	DisplayName string
	Token       string
}

// SessionValidity is the result of a pure validity read.
type SessionValidity struct {
	Valid   bool
	Expired bool
}

// SessionManager owns the client-held authentication state. Profile and
// expiry fields live in the persistent store; the bearer token lives in the
// process-scoped store.
type SessionManager struct {
	store  Store
	tokens Store
	now    func() time.Time

	// expiredHandler is invoked when CheckSession detects an invalid
	// session with notify enabled. It is the navigation analog: the CLI
	// wires it to a user-facing message.
	expiredHandler func()

	mu         sync.Mutex
	lastExtend time.Time
}

// NewSessionManager creates a session manager over the two stores.
func NewSessionManager(persistent, scoped Store) *SessionManager {
	return &SessionManager{
		store:  persistent,
		tokens: scoped,
		now:    time.Now,
	}
}

// SetExpiredHandler installs the callback invoked on detected expiry.
func (m *SessionManager) SetExpiredHandler(fn func()) {
	m.expiredHandler = fn
}

// CreateSession establishes a new authenticated session with a fresh
// expiry. Side effect only; storage writes are best-effort.
func (m *SessionManager) CreateSession(user UserData) {
	expiry := m.now().Add(SessionDuration)

	m.set(KeySession, sessionAuthenticated)
	m.set(KeySessionExpiry, strconv.FormatInt(expiry.UnixMilli(), 10))

	if user.ID != "" {
		m.set(KeyUserID, user.ID)
	}
	if user.Email != "" {
		m.set(KeyUserEmail, user.Email)
	}
	if user.DisplayName != "" {
		m.set(KeyFullName, user.DisplayName)
		// Preserve an existing nickname if the user already set one.
		if _, ok := m.store.Get(KeyUserName); !ok {
			m.set(KeyUserName, "")
		}
	}
	if user.Token != "" {
		if err := m.tokens.Set(KeyAuthToken, user.Token); err != nil {
			LogDebug("failed to store auth token: %v", err)
		}
	}
}

// Validity is a pure read of the session state. It never mutates storage;
// callers that want the lazy-clear convenience use IsValid.
func (m *SessionManager) Validity() SessionValidity {
	status, ok := m.store.Get(KeySession)
	if !ok || status != sessionAuthenticated {
		return SessionValidity{}
	}

	raw, ok := m.store.Get(KeySessionExpiry)
	if !ok {
		return SessionValidity{}
	}

	expiryMillis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return SessionValidity{}
	}

	if m.now().UnixMilli() > expiryMillis {
		return SessionValidity{Expired: true}
	}
	return SessionValidity{Valid: true}
}

// IsValid reports whether the session is valid, clearing an expired session
// as a side effect. Validity reads are therefore not cacheable across
// suspension points; re-check after any blocking call.
func (m *SessionManager) IsValid() bool {
	v := m.Validity()
	if v.Expired {
		m.ClearSession()
	}
	return v.Valid
}

// Expiry returns the session expiry time, if one is recorded.
func (m *SessionManager) Expiry() (time.Time, bool) {
	raw, ok := m.store.Get(KeySessionExpiry)
	if !ok {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// TimeUntilExpiry returns the remaining session lifetime, or zero if the
// session is absent or already expired.
func (m *SessionManager) TimeUntilExpiry() time.Duration {
	expiry, ok := m.Expiry()
	if !ok {
		return 0
	}
	remaining := expiry.Sub(m.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtendSession resets the expiry to now plus the fixed duration. It is a
// no-op returning false if the session is already invalid.
func (m *SessionManager) ExtendSession() bool {
	if !m.IsValid() {
		return false
	}
	expiry := m.now().Add(SessionDuration)
	m.set(KeySessionExpiry, strconv.FormatInt(expiry.UnixMilli(), 10))
	return true
}

// ClearSession unconditionally removes all session keys, the bearer token,
// and any per-provider cached API key artifacts.
func (m *SessionManager) ClearSession() {
	for _, key := range []string{KeySession, KeySessionExpiry, KeyUserID, KeyUserEmail, KeyFullName, KeyUserName} {
		m.del(key)
	}
	if err := m.tokens.Delete(KeyAuthToken); err != nil {
		LogDebug("failed to clear auth token: %v", err)
	}
	for _, key := range providerAPIKeyKeys {
		m.del(key)
	}
}

// UserID returns the cached user id, if any.
func (m *SessionManager) UserID() string {
	id, _ := m.store.Get(KeyUserID)
	return id
}

// CheckSession wraps IsValid. When the session is invalid and notify is
// true, it clears the session and invokes the expired handler. This is the
// only place the session layer surfaces expiry to the user.
func (m *SessionManager) CheckSession(notify bool) bool {
	if m.IsValid() {
		return true
	}
	if notify {
		m.ClearSession()
		if m.expiredHandler != nil {
			m.expiredHandler()
		}
	}
	return false
}

// Touch records user activity. The session is extended at most once per
// 30 seconds of continued activity.
func (m *SessionManager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastExtend) < extendThrottle {
		return
	}
	if m.ExtendSession() {
		m.lastExtend = now
	}
}

// StartMonitoring launches the background session monitor: a once-per-minute
// validity re-check with the expired handler enabled. It is only installed
// when a session already exists, and stops with the context. Returns false
// if no monitor was started.
func (m *SessionManager) StartMonitoring(ctx context.Context) bool {
	if !m.IsValid() {
		return false
	}

	go func() {
		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckSession(true)
			}
		}
	}()

	// Initial check without notification, matching startup behavior.
	m.CheckSession(false)
	return true
}

func (m *SessionManager) set(key, value string) {
	if err := m.store.Set(key, value); err != nil {
		LogDebug("session store write failed: %v", err)
	}
}

func (m *SessionManager) del(key string) {
	if err := m.store.Delete(key); err != nil {
		LogDebug("session store delete failed: %v", err)
	}
}
