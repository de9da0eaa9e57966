package internal

import (
	"fmt"
	"testing"
	"time"
)

func newTestAuditLogger() (*AuditLogger, *MemStore) {
	store := NewMemStore()
	return NewAuditLogger(store, "test-client/1.0"), store
}

func TestAuditLogger_LogEvent(t *testing.T) {
	logger, store := newTestAuditLogger()
	store.Set(KeyUserID, "user-42")

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return stamp }

	logger.LogEvent(EventLogin, LevelInfo, "Login successful", map[string]string{"email": "a@b.co"})

	logs := logger.GetLogs(MaxLogEntries)
	if len(logs) != 1 {
		t.Fatalf("GetLogs() returned %d entries, want 1", len(logs))
	}

	entry := logs[0]
	if entry.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("Timestamp = %q, want %q", entry.Timestamp, "2025-06-01T12:00:00Z")
	}
	if entry.EventType != EventLogin {
		t.Errorf("EventType = %q, want %q", entry.EventType, EventLogin)
	}
	if entry.Level != LevelInfo {
		t.Errorf("Level = %q, want %q", entry.Level, LevelInfo)
	}
	if entry.Metadata["email"] != "a@b.co" {
		t.Errorf("Metadata[email] = %q, want %q", entry.Metadata["email"], "a@b.co")
	}
	if entry.Metadata["client"] != "test-client/1.0" {
		t.Errorf("Metadata[client] = %q, want %q", entry.Metadata["client"], "test-client/1.0")
	}
	if entry.Metadata["user_id"] != "user-42" {
		t.Errorf("Metadata[user_id] = %q, want %q", entry.Metadata["user_id"], "user-42")
	}
}

func TestAuditLogger_TruncatesFromFront(t *testing.T) {
	logger, _ := newTestAuditLogger()

	for i := 0; i < 150; i++ {
		logger.LogEvent(EventLogin, LevelInfo, fmt.Sprintf("event %d", i), nil)
	}

	logs := logger.GetLogs(MaxLogEntries)
	if len(logs) != MaxLogEntries {
		t.Fatalf("GetLogs() returned %d entries, want %d", len(logs), MaxLogEntries)
	}

	// The oldest 50 entries were dropped; the newest 100 remain in order.
	if logs[0].Message != "event 50" {
		t.Errorf("oldest retained entry = %q, want %q", logs[0].Message, "event 50")
	}
	if logs[len(logs)-1].Message != "event 149" {
		t.Errorf("newest retained entry = %q, want %q", logs[len(logs)-1].Message, "event 149")
	}
}

func TestAuditLogger_GetLogsLimit(t *testing.T) {
	logger, _ := newTestAuditLogger()

	for i := 0; i < 10; i++ {
		logger.LogEvent(EventLogin, LevelInfo, fmt.Sprintf("event %d", i), nil)
	}

	logs := logger.GetLogs(3)
	if len(logs) != 3 {
		t.Fatalf("GetLogs(3) returned %d entries, want 3", len(logs))
	}
	if logs[0].Message != "event 7" {
		t.Errorf("GetLogs(3) first entry = %q, want %q", logs[0].Message, "event 7")
	}
}

func TestAuditLogger_Filters(t *testing.T) {
	logger, _ := newTestAuditLogger()

	logger.LogEvent(EventLogin, LevelInfo, "login ok", nil)
	logger.LogEvent(EventLoginFailed, LevelSecurity, "login failed", nil)
	logger.LogEvent(EventRateLimitExceeded, LevelWarning, "limited", nil)
	logger.LogEvent(EventUnauthorized, LevelSecurity, "401", nil)

	if got := logger.GetLogsByType(EventLoginFailed); len(got) != 1 {
		t.Errorf("GetLogsByType(login_failed) returned %d entries, want 1", len(got))
	}
	if got := logger.GetLogsByLevel(LevelWarning); len(got) != 1 {
		t.Errorf("GetLogsByLevel(warning) returned %d entries, want 1", len(got))
	}
	if got := logger.GetSecurityLogs(); len(got) != 2 {
		t.Errorf("GetSecurityLogs() returned %d entries, want 2", len(got))
	}
}

func TestAuditLogger_ClearLogs(t *testing.T) {
	logger, store := newTestAuditLogger()

	logger.LogEvent(EventLogin, LevelInfo, "login ok", nil)
	logger.ClearLogs()

	if logs := logger.GetLogs(MaxLogEntries); len(logs) != 0 {
		t.Errorf("GetLogs() after ClearLogs() returned %d entries, want 0", len(logs))
	}
	if _, ok := store.Get(KeyAuditLog); ok {
		t.Error("audit log key still present after ClearLogs()")
	}
}

func TestAuditLogger_CorruptLogRecovers(t *testing.T) {
	logger, store := newTestAuditLogger()
	store.Set(KeyAuditLog, "{not json")

	if logs := logger.GetLogs(MaxLogEntries); len(logs) != 0 {
		t.Errorf("GetLogs() on corrupt log returned %d entries, want 0", len(logs))
	}

	// Logging over a corrupt log starts a fresh one.
	logger.LogEvent(EventLogin, LevelInfo, "fresh", nil)
	if logs := logger.GetLogs(MaxLogEntries); len(logs) != 1 {
		t.Errorf("GetLogs() after recovery returned %d entries, want 1", len(logs))
	}
}
