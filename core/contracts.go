package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// KVStore is a namespaced byte store whose entries expire after their TTL.
// Take reads and removes an entry atomically; a caller that loses the race
// observes the entry as absent.
type KVStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

// Provider describes one OAuth2 authorization-code integration: how to send
// the user to consent, how to trade the code for tokens, and which resource
// categories can be listed with the resulting credential.
type Provider interface {
	ID() string
	AuthorizationURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (TokenGrant, error)
	Categories() []ResourceCategory
	FetchCategory(ctx context.Context, category ResourceCategory, credential Credential, limit int) ([]IntegrationItem, error)
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

// CompletionNotifier is told when a callback has stored a credential so the
// initiating client can stop waiting.
type CompletionNotifier interface {
	FlowCompleted(ctx context.Context, key CompositeKey)
}

type CompletionNotifierFunc func(ctx context.Context, key CompositeKey)

func (f CompletionNotifierFunc) FlowCompleted(ctx context.Context, key CompositeKey) {
	if f != nil {
		f(ctx, key)
	}
}

type NopCompletionNotifier struct{}

func (NopCompletionNotifier) FlowCompleted(context.Context, CompositeKey) {}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type IntegrationService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	Callback(ctx context.Context, providerID string, params CallbackParams) (CallbackResult, error)
	GetCredentials(ctx context.Context, req CredentialRequest) (Credential, error)
	AwaitCredentials(ctx context.Context, req CredentialRequest) (Credential, error)
	Load(ctx context.Context, providerID string, credential Credential) (LoadResult, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
