package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[GetCredentialsMessage, core.Credential]   = (*GetCredentialsQuery)(nil)
	_ gocmd.Querier[AwaitCredentialsMessage, core.Credential] = (*AwaitCredentialsQuery)(nil)
	_ gocmd.Querier[LoadMessage, core.LoadResult]             = (*LoadQuery)(nil)
)
