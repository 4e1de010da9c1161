package query

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeGetCredentials   = "integrations.query.credentials"
	TypeAwaitCredentials = "integrations.query.credentials.await"
	TypeLoad             = "integrations.query.load"
)

type GetCredentialsMessage struct {
	Request core.CredentialRequest
}

func (GetCredentialsMessage) Type() string { return TypeGetCredentials }

func (m GetCredentialsMessage) Validate() error {
	return validateCredentialRequest(m.Request)
}

// AwaitCredentialsMessage polls the vault until the callback for the key has
// stored a credential or the configured poll timeout elapses.
type AwaitCredentialsMessage struct {
	Request core.CredentialRequest
}

func (AwaitCredentialsMessage) Type() string { return TypeAwaitCredentials }

func (m AwaitCredentialsMessage) Validate() error {
	return validateCredentialRequest(m.Request)
}

type LoadMessage struct {
	ProviderID string
	Credential core.Credential
}

func (LoadMessage) Type() string { return TypeLoad }

func (m LoadMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider", "provider id is required")
	}
	if strings.TrimSpace(m.Credential.AccessToken) == "" {
		return queryInvalidInputError("query: access token is required")
	}
	return nil
}

func validateCredentialRequest(req core.CredentialRequest) error {
	if err := req.Key().Validate(); err != nil {
		return queryWrapValidation(err, "query: invalid credential request")
	}
	return nil
}
