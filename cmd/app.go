package cmd

import (
	"fmt"

	"github.com/sharedlm/sharedlm/internal"
)

// app wires the client stack for a command invocation: config, stores,
// session manager, auth facade, audit logger and API client.
type app struct {
	config   *internal.Config
	store    *internal.SQLiteStore
	tokens   *internal.MemStore
	sessions *internal.SessionManager
	auth     *internal.Auth
	audit    *internal.AuditLogger
	client   *internal.APIClient
}

func newApp() (*app, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		config.DataDir = dataDir
	}
	if apiURL != "" {
		config.APIBaseURL = apiURL
	}

	store, err := internal.OpenStore(config.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	tokens := internal.NewMemStore()
	sessions := internal.NewSessionManager(store, tokens)
	sessions.SetExpiredHandler(func() {
		internal.PrintWarning("Session expired. Run 'sharedlm login' to sign in again.")
	})

	auth := internal.NewAuth(sessions, store, tokens)
	audit := internal.NewAuditLogger(store, "sharedlm-cli/"+version)
	client := internal.NewAPIClient(config.APIBaseURL, sessions, auth, internal.NewRateLimiter(), audit)

	return &app{
		config:   config,
		store:    store,
		tokens:   tokens,
		sessions: sessions,
		auth:     auth,
		audit:    audit,
		client:   client,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		internal.LogDebug("failed to close store: %v", err)
	}
}
