package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeAuthorize = "integrations.command.authorize"
	TypeCallback  = "integrations.command.callback"
)

type AuthorizeMessage struct {
	Request core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if err := m.Request.Key().Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid authorize request")
	}
	return nil
}

// CallbackMessage carries the query parameters of a provider redirect. The
// user and organization travel inside the encoded state.
type CallbackMessage struct {
	ProviderID string
	Params     core.CallbackParams
}

func (CallbackMessage) Type() string { return TypeCallback }

func (m CallbackMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return commandValidationError("provider", "provider id is required")
	}
	if m.Params.Error != "" || m.Params.ErrorDescription != "" {
		return nil
	}
	if strings.TrimSpace(m.Params.State) == "" {
		return commandValidationError("state", "state is required")
	}
	if strings.TrimSpace(m.Params.Code) == "" {
		return commandInvalidInputError("command: authorization code is required")
	}
	return nil
}
