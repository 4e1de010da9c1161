package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

type AuthorizeService interface {
	Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error)
}

type CallbackService interface {
	Callback(ctx context.Context, providerID string, params core.CallbackParams) (core.CallbackResult, error)
}

type AuthorizeCommand struct {
	service AuthorizeService
}

func NewAuthorizeCommand(service AuthorizeService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorize service is required")
	}
	out, err := c.service.Authorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CallbackCommand struct {
	service CallbackService
}

func NewCallbackCommand(service CallbackService) *CallbackCommand {
	return &CallbackCommand{service: service}
}

func (c *CallbackCommand) Execute(ctx context.Context, msg CallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.Callback(ctx, msg.ProviderID, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
