package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

// Backend is a fake SharedLM API server for client tests.
type Backend struct {
	Server *httptest.Server
	Router *mux.Router
}

// NewBackend starts a test HTTP server with an empty router. The server is
// shut down automatically when the test finishes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	router := mux.NewRouter()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &Backend{Server: server, Router: router}
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// HandleJSON registers a route that responds with a fixed status and JSON body.
func (b *Backend) HandleJSON(method, path string, status int, body interface{}) {
	b.Router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}).Methods(method)
}

// HandleFunc registers a custom handler for a route.
func (b *Backend) HandleFunc(method, path string, handler http.HandlerFunc) {
	b.Router.HandleFunc(path, handler).Methods(method)
}
