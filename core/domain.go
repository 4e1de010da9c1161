package core

import (
	"fmt"
	"strings"
	"time"
)

// CompositeKey scopes every pending state and credential to one provider,
// user and organization.
type CompositeKey struct {
	ProviderID string `json:"provider"`
	UserID     string `json:"user_id"`
	OrgID      string `json:"org_id"`
}

func (k CompositeKey) Normalize() CompositeKey {
	return CompositeKey{
		ProviderID: strings.ToLower(strings.TrimSpace(k.ProviderID)),
		UserID:     strings.TrimSpace(k.UserID),
		OrgID:      strings.TrimSpace(k.OrgID),
	}
}

func (k CompositeKey) Validate() error {
	if strings.TrimSpace(k.ProviderID) == "" {
		return fmt.Errorf("core: provider id is required")
	}
	if strings.TrimSpace(k.UserID) == "" {
		return fmt.Errorf("core: user_id is required")
	}
	if strings.TrimSpace(k.OrgID) == "" {
		return fmt.Errorf("core: org_id is required")
	}
	return nil
}

func (k CompositeKey) fields() map[string]any {
	return map[string]any{
		"provider_id": k.ProviderID,
		"user_id":     k.UserID,
		"org_id":      k.OrgID,
	}
}

type AuthorizationState struct {
	ProviderID string        `json:"provider"`
	UserID     string        `json:"user_id"`
	OrgID      string        `json:"org_id"`
	CSRFToken  string        `json:"csrf_token"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"ttl"`
}

func (s AuthorizationState) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.TTL)
}

// Credential is the token material handed back exactly once to the client
// that started the flow. Raw carries the provider payload untouched.
type Credential struct {
	ProviderID   string         `json:"provider,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	OrgID        string         `json:"org_id,omitempty"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	Scope        string         `json:"scope,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
}

type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	Raw          map[string]any
}

type IntegrationItem struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResourceCategory names one listable resource kind. Tag is appended to
// native ids so items from different categories never collide.
type ResourceCategory struct {
	Tag  string `json:"tag"`
	Type string `json:"type"`
}

type AuthorizeRequest struct {
	ProviderID string
	UserID     string
	OrgID      string
}

func (r AuthorizeRequest) Key() CompositeKey {
	return CompositeKey{ProviderID: r.ProviderID, UserID: r.UserID, OrgID: r.OrgID}.Normalize()
}

type AuthorizeResponse struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type CallbackResult struct {
	Key       CompositeKey
	ExpiresAt time.Time
}

type CredentialRequest struct {
	ProviderID string
	UserID     string
	OrgID      string
}

func (r CredentialRequest) Key() CompositeKey {
	return CompositeKey{ProviderID: r.ProviderID, UserID: r.UserID, OrgID: r.OrgID}.Normalize()
}

type CategoryFailure struct {
	Category ResourceCategory `json:"category"`
	Err      error            `json:"-"`
	Message  string           `json:"message"`
}

type LoadResult struct {
	Items    []IntegrationItem `json:"items"`
	Failures []CategoryFailure `json:"failures,omitempty"`
}
