package internal

import (
	"encoding/json"
	"time"
)

// MaxLogEntries is the bound on the persisted audit log.
const MaxLogEntries = 100

// AuditLevel classifies the severity of an audit event.
type AuditLevel string

const (
	LevelInfo     AuditLevel = "info"
	LevelWarning  AuditLevel = "warning"
	LevelError    AuditLevel = "error"
	LevelSecurity AuditLevel = "security"
)

// EventType identifies a security/audit-relevant event.
type EventType string

const (
	EventLogin             EventType = "login"
	EventLogout            EventType = "logout"
	EventLoginFailed       EventType = "login_failed"
	EventSignup            EventType = "signup"
	EventPasswordChange    EventType = "password_change"
	EventAccountDeleted    EventType = "account_deleted"
	EventAPIKeySaved       EventType = "api_key_saved"
	EventAPIKeyDeleted     EventType = "api_key_deleted"
	EventFileUpload        EventType = "file_upload"
	EventRateLimitExceeded EventType = "rate_limit_exceeded"
	EventSessionExpired    EventType = "session_expired"
	EventUnauthorized      EventType = "unauthorized_access"
	EventXSSAttempt        EventType = "xss_attempt"
	EventInvalidInput      EventType = "invalid_input"
)

// AuditEntry is one record of a security/audit-relevant event.
type AuditEntry struct {
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
	EventType EventType         `json:"event_type" yaml:"event_type"`
	Level     AuditLevel        `json:"level" yaml:"level"`
	Message   string            `json:"message" yaml:"message"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AuditLogger appends bounded audit records to the persistent store. Every
// operation is best-effort: logging must never raise to the caller or break
// the calling feature.
type AuditLogger struct {
	store      Store
	clientInfo string
	now        func() time.Time
}

// NewAuditLogger creates an audit logger backed by the given store.
func NewAuditLogger(store Store, clientInfo string) *AuditLogger {
	return &AuditLogger{
		store:      store,
		clientInfo: clientInfo,
		now:        time.Now,
	}
}

// LogEvent appends an audit entry, auto-stamping the timestamp, client
// identification and the current user id, and truncates the log from the
// front once it exceeds MaxLogEntries.
func (l *AuditLogger) LogEvent(eventType EventType, level AuditLevel, message string, metadata map[string]string) {
	entry := AuditEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		EventType: eventType,
		Level:     level,
		Message:   message,
		Metadata:  make(map[string]string, len(metadata)+2),
	}

	for k, v := range metadata {
		entry.Metadata[k] = v
	}
	entry.Metadata["client"] = l.clientInfo
	if userID, ok := l.store.Get(KeyUserID); ok && userID != "" {
		entry.Metadata["user_id"] = userID
	}

	logs := l.GetLogs(MaxLogEntries)
	logs = append(logs, entry)
	if len(logs) > MaxLogEntries {
		logs = logs[len(logs)-MaxLogEntries:]
	}

	data, err := json.Marshal(logs)
	if err != nil {
		LogDebug("failed to marshal audit log: %v", err)
		return
	}
	if err := l.store.Set(KeyAuditLog, string(data)); err != nil {
		LogDebug("failed to persist audit log: %v", err)
	}
}

// GetLogs returns up to limit of the most recent entries, oldest first.
func (l *AuditLogger) GetLogs(limit int) []AuditEntry {
	raw, ok := l.store.Get(KeyAuditLog)
	if !ok || raw == "" {
		return []AuditEntry{}
	}

	var logs []AuditEntry
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		LogDebug("failed to parse audit log: %v", err)
		return []AuditEntry{}
	}

	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return logs
}

// GetLogsByType returns entries matching the given event type.
func (l *AuditLogger) GetLogsByType(eventType EventType) []AuditEntry {
	var filtered []AuditEntry
	for _, entry := range l.GetLogs(MaxLogEntries) {
		if entry.EventType == eventType {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetLogsByLevel returns entries matching the given level.
func (l *AuditLogger) GetLogsByLevel(level AuditLevel) []AuditEntry {
	var filtered []AuditEntry
	for _, entry := range l.GetLogs(MaxLogEntries) {
		if entry.Level == level {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetSecurityLogs returns security-level entries.
func (l *AuditLogger) GetSecurityLogs() []AuditEntry {
	return l.GetLogsByLevel(LevelSecurity)
}

// ClearLogs empties the persisted audit log.
func (l *AuditLogger) ClearLogs() {
	if err := l.store.Delete(KeyAuditLog); err != nil {
		LogDebug("failed to clear audit log: %v", err)
	}
}
