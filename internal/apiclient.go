package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestTimeout is the fixed client-side timeout for API requests.
const RequestTimeout = 30 * time.Second

const healthTimeout = 5 * time.Second

// Endpoint prefixes that share a rate-limit bucket.
var bucketPrefixes = []string{"/auth/login", "/auth/signup", "/chat", "/upload", "/api-keys", "/conversations", "/projects", "/custom-integrations"}

// APIClient wraps HTTP access to the SharedLM backend, applying the session
// pre-flight check, rate limiting, auth headers, timeout handling and the
// 401 logout path.
type APIClient struct {
	baseURL  string
	http     *http.Client
	sessions *SessionManager
	auth     *Auth
	limiter  *RateLimiter
	audit    *AuditLogger
}

// NewAPIClient creates a client for the backend at baseURL.
func NewAPIClient(baseURL string, sessions *SessionManager, auth *Auth, limiter *RateLimiter, audit *AuditLogger) *APIClient {
	return &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: RequestTimeout},
		sessions: sessions,
		auth:     auth,
		limiter:  limiter,
		audit:    audit,
	}
}

// isAuthExempt reports whether the target does not require a session.
func isAuthExempt(path string) bool {
	return strings.Contains(path, "/auth/login") ||
		strings.Contains(path, "/auth/signup") ||
		strings.Contains(path, "/health")
}

// endpointOf extracts the logical endpoint used for rate-limit bucketing.
func (c *APIClient) endpointOf(rawPath string) string {
	path := rawPath
	if u, err := url.Parse(rawPath); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, prefix := range bucketPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix
		}
	}
	return path
}

// MakeRequest performs an API request with the full client pipeline. The
// caller owns the returned response body. Non-2xx statuses other than 401
// are returned as-is for the caller to interpret.
func (c *APIClient) MakeRequest(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	exempt := isAuthExempt(path)

	if !exempt && !c.sessions.CheckSession(false) {
		c.audit.LogEvent(EventUnauthorized, LevelSecurity, "Attempted API request with invalid session", map[string]string{"path": path})
		return nil, &SessionExpiredError{}
	}

	endpoint := c.endpointOf(path)
	limit := c.limiter.CheckLimit(endpoint)
	if !limit.Allowed {
		retryAfter := time.Until(limit.ResetAt)
		c.audit.LogEvent(EventRateLimitExceeded, LevelWarning,
			fmt.Sprintf("Rate limit exceeded for endpoint: %s", endpoint),
			map[string]string{"endpoint": endpoint, "reset_at": limit.ResetAt.UTC().Format(time.RFC3339)})
		return nil, &RateLimitError{Endpoint: endpoint, RetryAfter: retryAfter}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, value := range c.auth.AuthHeaders() {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		// A caller-supplied Content-Type (multipart boundary) wins over
		// the default JSON content type.
		req.Header.Set(key, value)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: path}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Sliding-activity behavior piggybacks on any successful
	// authenticated call, not just user interaction.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && !exempt && endpoint != "/health" {
		c.sessions.ExtendSession()
	}

	if resp.StatusCode == http.StatusUnauthorized && !exempt {
		resp.Body.Close()
		c.audit.LogEvent(EventUnauthorized, LevelSecurity, "Received 401 Unauthorized response", map[string]string{"path": path})
		c.sessions.ClearSession()
		c.sessions.CheckSession(true)
		return nil, &SessionExpiredError{FromServer: true}
	}

	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// doJSON issues a request with a JSON payload and decodes a JSON response,
// translating non-2xx statuses into an APIError.
func (c *APIClient) doJSON(ctx context.Context, method, path, op string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.MakeRequest(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, op, out)
}

func (c *APIClient) parseResponse(resp *http.Response, op string, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(resp, op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// responseError refines a non-2xx response with the server's detail
// message when present.
func (c *APIClient) responseError(resp *http.Response, op string) error {
	var detail struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&detail)
	return &APIError{Op: op, StatusCode: resp.StatusCode, Detail: detail.Detail}
}

// Signup registers a new account. Rate limited but session-exempt.
func (c *APIClient) Signup(ctx context.Context, email, password, displayName string) (*AuthResponse, error) {
	payload := map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}

	var result AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", "signup", payload, &result); err != nil {
		return nil, err
	}

	c.audit.LogEvent(EventSignup, LevelInfo, "Account created", map[string]string{"email": email})
	return &result, nil
}

// Login authenticates with the backend. Failures never reveal whether the
// email or the password was wrong.
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	payload := map[string]string{"email": email, "password": password}

	var result AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", "login", payload, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.audit.LogEvent(EventLoginFailed, LevelSecurity, "Login failed", map[string]string{"email": email})
			return nil, &APIError{Op: "login", StatusCode: apiErr.StatusCode, Detail: "invalid email or password"}
		}
		return nil, err
	}

	c.audit.LogEvent(EventLogin, LevelInfo, "Login successful", map[string]string{"email": email})
	return &result, nil
}

// Logout clears the local session. There is no backend logout endpoint.
func (c *APIClient) Logout() {
	c.audit.LogEvent(EventLogout, LevelInfo, "Logout", nil)
	c.sessions.ClearSession()
}

// CheckHealth probes the backend. It never returns an error; an unreachable
// backend is reported in the status.
func (c *APIClient) CheckHealth(ctx context.Context) HealthStatus {
	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := c.MakeRequest(healthCtx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return HealthStatus{Status: "error", Message: err.Error()}
	}

	var status HealthStatus
	if err := c.parseResponse(resp, "health check", &status); err != nil {
		return HealthStatus{Status: "error", Message: err.Error()}
	}
	return status
}

// GetModels lists the models available to the current user.
func (c *APIClient) GetModels(ctx context.Context) (*ModelsResponse, error) {
	path := "/models?userId=" + url.QueryEscape(c.auth.UserID())
	var result ModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch models", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendChatMessage sends a chat message and returns the model's reply.
func (c *APIClient) SendChatMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.UserID == "" {
		req.UserID = c.auth.UserID()
	}
	var result ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", "send message", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadFile uploads a file as multipart form data.
func (c *APIClient) UploadFile(ctx context.Context, filePath, conversationID string) (*UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	_ = writer.WriteField("user_id", c.auth.UserID())
	if conversationID != "" {
		_ = writer.WriteField("conversation_id", conversationID)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	resp, err := c.MakeRequest(ctx, http.MethodPost, "/upload", &buf, headers)
	if err != nil {
		return nil, err
	}

	var result UploadResponse
	if err := c.parseResponse(resp, "upload", &result); err != nil {
		return nil, err
	}

	c.audit.LogEvent(EventFileUpload, LevelInfo, "File uploaded", map[string]string{"filename": filepath.Base(filePath)})
	return &result, nil
}

// ChangePassword updates the account password.
func (c *APIClient) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	payload := map[string]string{
		"user_id":          c.auth.UserID(),
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/change-password", "change password", payload, nil); err != nil {
		return err
	}
	c.audit.LogEvent(EventPasswordChange, LevelSecurity, "Password changed", nil)
	return nil
}

// DeleteAccount removes the account and clears the local session.
func (c *APIClient) DeleteAccount(ctx context.Context) error {
	path := "/auth/account/" + url.PathEscape(c.auth.UserID())
	if err := c.doJSON(ctx, http.MethodDelete, path, "delete account", nil, nil); err != nil {
		return err
	}
	c.audit.LogEvent(EventAccountDeleted, LevelSecurity, "Account deleted", nil)
	c.sessions.ClearSession()
	return nil
}

// ListConversations lists the user's conversations.
func (c *APIClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	path := "/conversations/" + url.PathEscape(c.auth.UserID())
	var result struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch conversations", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// GetConversation fetches one conversation by id.
func (c *APIClient) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	path := "/conversations/" + url.PathEscape(c.auth.UserID()) + "/" + url.PathEscape(conversationID)
	var result Conversation
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch conversation", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateConversationTitle renames a conversation.
func (c *APIClient) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	path := "/conversations/" + url.PathEscape(conversationID)
	return c.doJSON(ctx, http.MethodPut, path, "rename conversation", map[string]string{"title": title}, nil)
}

// DeleteConversation removes a conversation.
func (c *APIClient) DeleteConversation(ctx context.Context, conversationID string) error {
	path := "/conversations/" + url.PathEscape(conversationID)
	return c.doJSON(ctx, http.MethodDelete, path, "delete conversation", nil, nil)
}

// ListProjects lists the user's projects.
func (c *APIClient) ListProjects(ctx context.Context) ([]Project, error) {
	path := "/projects/" + url.PathEscape(c.auth.UserID())
	var result struct {
		Projects []Project `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch projects", nil, &result); err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// CreateProject creates a project.
func (c *APIClient) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	path := "/projects/" + url.PathEscape(c.auth.UserID())
	payload := map[string]string{"name": name, "description": description}
	var result Project
	if err := c.doJSON(ctx, http.MethodPost, path, "create project", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProject updates a project's name and description.
func (c *APIClient) UpdateProject(ctx context.Context, projectID, name, description string) error {
	path := "/projects/" + url.PathEscape(projectID)
	payload := map[string]string{"name": name, "description": description}
	return c.doJSON(ctx, http.MethodPut, path, "update project", payload, nil)
}

// DeleteProject removes a project.
func (c *APIClient) DeleteProject(ctx context.Context, projectID string) error {
	path := "/projects/" + url.PathEscape(projectID)
	return c.doJSON(ctx, http.MethodDelete, path, "delete project", nil, nil)
}

// SaveAPIKey stores a provider API key for the user.
func (c *APIClient) SaveAPIKey(ctx context.Context, provider ProviderRef, apiKey string) error {
	path := "/api-keys/" + url.PathEscape(c.auth.UserID())
	payload := map[string]string{"provider": provider.String(), "api_key": apiKey}
	if err := c.doJSON(ctx, http.MethodPost, path, "save API key", payload, nil); err != nil {
		return err
	}
	c.audit.LogEvent(EventAPIKeySaved, LevelSecurity, "API key saved", map[string]string{"provider": provider.String()})
	return nil
}

// ListAPIKeys lists stored provider keys, classifying each provider
// reference at the load boundary.
func (c *APIClient) ListAPIKeys(ctx context.Context) ([]APIKeyInfo, error) {
	path := "/api-keys/" + url.PathEscape(c.auth.UserID())
	var result struct {
		Keys []APIKeyInfo `json:"api_keys"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch API keys", nil, &result); err != nil {
		return nil, err
	}
	for i := range result.Keys {
		result.Keys[i].Ref = ParseProviderRef(result.Keys[i].Provider)
	}
	return result.Keys, nil
}

// DeleteAPIKey removes a stored provider key.
func (c *APIClient) DeleteAPIKey(ctx context.Context, provider ProviderRef) error {
	path := "/api-keys/" + url.PathEscape(c.auth.UserID()) + "/" + url.PathEscape(provider.String())
	if err := c.doJSON(ctx, http.MethodDelete, path, "delete API key", nil, nil); err != nil {
		return err
	}
	c.audit.LogEvent(EventAPIKeyDeleted, LevelSecurity, "API key deleted", map[string]string{"provider": provider.String()})
	return nil
}

// TestAPIKey asks the backend to validate a stored provider key.
func (c *APIClient) TestAPIKey(ctx context.Context, provider ProviderRef) error {
	path := "/api-keys/" + url.PathEscape(c.auth.UserID()) + "/" + url.PathEscape(provider.String()) + "/test"
	return c.doJSON(ctx, http.MethodPost, path, "test API key", nil, nil)
}

// ListCustomIntegrations lists user-defined provider endpoints.
func (c *APIClient) ListCustomIntegrations(ctx context.Context) ([]CustomIntegration, error) {
	path := "/custom-integrations/" + url.PathEscape(c.auth.UserID())
	var result struct {
		Integrations []CustomIntegration `json:"integrations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "fetch integrations", nil, &result); err != nil {
		return nil, err
	}
	for i := range result.Integrations {
		result.Integrations[i].Ref = ProviderRef{Kind: ProviderCustom, ID: result.Integrations[i].ID}
	}
	return result.Integrations, nil
}

// CreateCustomIntegration registers a custom provider endpoint.
func (c *APIClient) CreateCustomIntegration(ctx context.Context, integration CustomIntegration) (*CustomIntegration, error) {
	path := "/custom-integrations/" + url.PathEscape(c.auth.UserID())
	var result CustomIntegration
	if err := c.doJSON(ctx, http.MethodPost, path, "create integration", integration, &result); err != nil {
		return nil, err
	}
	result.Ref = ProviderRef{Kind: ProviderCustom, ID: result.ID}
	return &result, nil
}

// UpdateCustomIntegration updates a custom provider endpoint.
func (c *APIClient) UpdateCustomIntegration(ctx context.Context, integration CustomIntegration) error {
	path := "/custom-integrations/" + url.PathEscape(integration.ID)
	return c.doJSON(ctx, http.MethodPut, path, "update integration", integration, nil)
}

// DeleteCustomIntegration removes a custom provider endpoint.
func (c *APIClient) DeleteCustomIntegration(ctx context.Context, integrationID string) error {
	path := "/custom-integrations/" + url.PathEscape(integrationID)
	return c.doJSON(ctx, http.MethodDelete, path, "delete integration", nil, nil)
}
