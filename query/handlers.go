package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

type CredentialReader interface {
	GetCredentials(ctx context.Context, req core.CredentialRequest) (core.Credential, error)
	AwaitCredentials(ctx context.Context, req core.CredentialRequest) (core.Credential, error)
}

type ItemLoader interface {
	Load(ctx context.Context, providerID string, credential core.Credential) (core.LoadResult, error)
}

type GetCredentialsQuery struct {
	reader CredentialReader
}

func NewGetCredentialsQuery(reader CredentialReader) *GetCredentialsQuery {
	return &GetCredentialsQuery{reader: reader}
}

func (q *GetCredentialsQuery) Query(ctx context.Context, msg GetCredentialsMessage) (core.Credential, error) {
	if q == nil || q.reader == nil {
		return core.Credential{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.GetCredentials(ctx, msg.Request)
}

type AwaitCredentialsQuery struct {
	reader CredentialReader
}

func NewAwaitCredentialsQuery(reader CredentialReader) *AwaitCredentialsQuery {
	return &AwaitCredentialsQuery{reader: reader}
}

func (q *AwaitCredentialsQuery) Query(ctx context.Context, msg AwaitCredentialsMessage) (core.Credential, error) {
	if q == nil || q.reader == nil {
		return core.Credential{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.AwaitCredentials(ctx, msg.Request)
}

type LoadQuery struct {
	loader ItemLoader
}

func NewLoadQuery(loader ItemLoader) *LoadQuery {
	return &LoadQuery{loader: loader}
}

func (q *LoadQuery) Query(ctx context.Context, msg LoadMessage) (core.LoadResult, error) {
	if q == nil || q.loader == nil {
		return core.LoadResult{}, queryDependencyError("query: item loader is required")
	}
	return q.loader.Load(ctx, msg.ProviderID, msg.Credential)
}
