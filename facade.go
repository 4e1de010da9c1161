package integrations

import (
	"fmt"

	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

type Commands struct {
	Authorize *integrationscommand.AuthorizeCommand
	Callback  *integrationscommand.CallbackCommand
}

type Queries struct {
	GetCredentials   *integrationsquery.GetCredentialsQuery
	AwaitCredentials *integrationsquery.AwaitCredentialsQuery
	Load             *integrationsquery.LoadQuery
}

type Facade struct {
	service  core.IntegrationService
	commands Commands
	queries  Queries
}

func NewFacade(service core.IntegrationService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: integration service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Authorize: integrationscommand.NewAuthorizeCommand(service),
		Callback:  integrationscommand.NewCallbackCommand(service),
	}
	facade.queries = Queries{
		GetCredentials:   integrationsquery.NewGetCredentialsQuery(service),
		AwaitCredentials: integrationsquery.NewAwaitCredentialsQuery(service),
		Load:             integrationsquery.NewLoadQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.IntegrationService {
	if f == nil {
		return nil
	}
	return f.service
}
