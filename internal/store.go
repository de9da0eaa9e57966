package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is a small key-value abstraction over the client's persisted state.
// Reads are best-effort: a missing key and a storage failure both return
// ok=false, matching the browser storage semantics this replaces.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Keys() []string
}

// Storage key names persisted by the client. The session status/profile
// fields live in the persistent store; the bearer token lives only in the
// process-scoped store so a closed process invalidates bearer auth even if
// "remembered" state persists.
const (
	KeySession       = "sharedlm_session"
	KeySessionExpiry = "sharedlm_session_expiry"
	KeyUserID        = "sharedlm_user_id"
	KeyUserEmail     = "sharedlm_user_email"
	KeyFullName      = "sharedlm_full_name"
	KeyUserName      = "sharedlm_user_name"
	KeyAuthToken     = "auth_token"
	KeyAuditLog      = "sharedlm_audit_log"
)

// Per-provider cached API key artifacts, removed on logout.
var providerAPIKeyKeys = []string{
	"sharedlm_api_openai",
	"sharedlm_api_anthropic",
	"sharedlm_api_mistral",
}

// SQLiteStore persists key-value pairs in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenStore opens (or creates) the persistent store at the given path.
func OpenStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the value for key, or ok=false if absent or unreadable.
func (s *SQLiteStore) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			LogDebug("store read failed for %s: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set writes the value for key, replacing any existing value.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store write failed for %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("store delete failed for %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys currently in the store.
func (s *SQLiteStore) Keys() []string {
	rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		LogDebug("store key listing failed: %v", err)
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemStore is a process-scoped store. Values live only for the lifetime of
// the process, the analog of page-session-scoped browser storage.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStore creates an empty process-scoped store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (m *MemStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	return keys
}
