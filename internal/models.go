package internal

import "strings"

// User is the profile shape returned by the auth endpoints.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Token       string `json:"token,omitempty"`
}

// AuthResponse is the response of the signup and login endpoints.
type AuthResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token,omitempty"`
}

// HealthStatus is the response of the health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ModelsResponse lists the models available to a user.
type ModelsResponse struct {
	AvailableModels []ModelInfo `json:"available_models"`
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ChatRequest is the payload of the chat endpoint.
type ChatRequest struct {
	UserID        string `json:"user_id"`
	Message       string `json:"message"`
	ModelProvider string `json:"model_provider,omitempty"`
	ModelChoice   string `json:"model_choice,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	ProjectID     string `json:"project_id,omitempty"`
}

// ChatResponse is the reply of the chat endpoint.
type ChatResponse struct {
	Reply          string   `json:"reply"`
	UsedModel      string   `json:"used_model,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Memories       []string `json:"memories,omitempty"`
}

// UploadResponse is the reply of the file upload endpoint.
type UploadResponse struct {
	Success bool         `json:"success"`
	File    UploadedFile `json:"file"`
}

// UploadedFile describes a stored upload.
type UploadedFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
}

// Conversation is a stored chat conversation summary.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Project groups conversations.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// APIKeyInfo describes a stored provider API key.
type APIKeyInfo struct {
	Provider string      `json:"provider"`
	Ref      ProviderRef `json:"-"`
	Masked   string      `json:"masked_key,omitempty"`
}

// CustomIntegration is a user-defined LLM provider endpoint.
type CustomIntegration struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	BaseURL string      `json:"base_url"`
	APIType string      `json:"api_type,omitempty"`
	Ref     ProviderRef `json:"-"`
}

// ProviderKind distinguishes built-in providers from custom integrations.
type ProviderKind int

const (
	ProviderStandard ProviderKind = iota
	ProviderCustom
)

// ProviderRef is a tagged reference to a provider. The kind is decided once
// at the data-entry boundary, when records are loaded from the backend, not
// re-derived from string shape at call sites.
type ProviderRef struct {
	Kind ProviderKind
	ID   string
}

// ParseProviderRef classifies a provider identifier as it arrives from the
// backend. Custom integration ids carry a "custom_" prefix on the wire.
func ParseProviderRef(id string) ProviderRef {
	if rest, ok := strings.CutPrefix(id, "custom_"); ok {
		return ProviderRef{Kind: ProviderCustom, ID: rest}
	}
	return ProviderRef{Kind: ProviderStandard, ID: id}
}

// String renders the wire form of the reference.
func (r ProviderRef) String() string {
	if r.Kind == ProviderCustom {
		return "custom_" + r.ID
	}
	return r.ID
}
