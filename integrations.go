package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type LoadConfig = core.LoadConfig

type PollConfig = core.PollConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type KVStore = core.KVStore
type Provider = core.Provider
type Registry = core.Registry
type CompletionNotifier = core.CompletionNotifier
type CompletionNotifierFunc = core.CompletionNotifierFunc
type MetricsRecorder = core.MetricsRecorder

type CompositeKey = core.CompositeKey
type AuthorizeRequest = core.AuthorizeRequest
type AuthorizeResponse = core.AuthorizeResponse
type CallbackParams = core.CallbackParams
type CallbackResult = core.CallbackResult
type CredentialRequest = core.CredentialRequest
type Credential = core.Credential

type IntegrationItem = core.IntegrationItem

type LoadResult = core.LoadResult

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithStore              = core.WithStore
	WithRegistry           = core.WithRegistry
	WithCompletionNotifier = core.WithCompletionNotifier
	WithClock              = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
