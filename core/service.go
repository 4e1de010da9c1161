package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           KVStore
	registry        Registry
	notifier        CompletionNotifier
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Store           KVStore
	Registry        Registry
	Notifier        CompletionNotifier
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.notifier == nil {
		builder.notifier = NopCompletionNotifier{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}
	if builder.store == nil {
		builder.store = NewMemoryStore(WithMemoryStoreClock(builder.now))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		store:           builder.store,
		registry:        builder.registry,
		notifier:        builder.notifier,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Store:           s.store,
		Registry:        s.registry,
		Notifier:        s.notifier,
	}
}

// Authorize issues a fresh CSRF token for the key, records it as the pending
// state and returns the provider consent URL. A previous pending state for the
// same key is overwritten.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (response AuthorizeResponse, err error) {
	startedAt := s.now()
	key := req.Key()
	fields := key.fields()
	defer func() {
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	if err = key.Validate(); err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}
	provider, err := s.resolveProvider(key.ProviderID)
	if err != nil {
		return AuthorizeResponse{}, err
	}

	token, err := generateCSRFToken()
	if err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}
	encoded, err := encodeStateParam(stateParam{State: token, UserID: key.UserID, OrgID: key.OrgID})
	if err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}
	authURL, err := provider.AuthorizationURL(encoded)
	if err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}

	record := AuthorizationState{
		ProviderID: key.ProviderID,
		UserID:     key.UserID,
		OrgID:      key.OrgID,
		CSRFToken:  token,
		CreatedAt:  s.now().UTC(),
		TTL:        s.config.StateTTL,
	}
	if err = s.putJSON(ctx, s.stateKey(key), record, s.config.StateTTL); err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}

	return AuthorizeResponse{
		URL:       authURL,
		State:     encoded,
		ExpiresAt: record.ExpiresAt(),
	}, nil
}

// Callback validates the provider redirect against the pending state,
// consumes that state, exchanges the code and stores the credential for a
// single read. The state is gone after a matching callback even when the
// exchange fails.
func (s *Service) Callback(ctx context.Context, providerID string, params CallbackParams) (result CallbackResult, err error) {
	startedAt := s.now()
	key := CompositeKey{ProviderID: providerID}.Normalize()
	fields := key.fields()
	defer func() {
		s.observeOperation(ctx, startedAt, "callback", err, fields)
	}()

	if strings.TrimSpace(params.Error) != "" || strings.TrimSpace(params.ErrorDescription) != "" {
		err = s.mapError(NewProviderError(key.ProviderID, params.Error, params.ErrorDescription))
		return CallbackResult{}, err
	}

	decoded, decodeErr := decodeStateParam(params.State)
	if decodeErr != nil {
		err = s.mapError(decodeErr)
		return CallbackResult{}, err
	}
	key.UserID = strings.TrimSpace(decoded.UserID)
	key.OrgID = strings.TrimSpace(decoded.OrgID)
	fields["user_id"] = key.UserID
	fields["org_id"] = key.OrgID
	if err = key.Validate(); err != nil {
		err = s.mapError(NewBadInputError("state does not identify a user and organization"))
		return CallbackResult{}, err
	}
	code := strings.TrimSpace(params.Code)
	if code == "" {
		err = s.mapError(NewBadInputError("authorization code is required"))
		return CallbackResult{}, err
	}

	provider, err := s.resolveProvider(key.ProviderID)
	if err != nil {
		return CallbackResult{}, err
	}
	if err = s.consumeState(ctx, key, decoded.State); err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	grant, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	now := s.now().UTC()
	credential := Credential{
		ProviderID:   key.ProviderID,
		UserID:       key.UserID,
		OrgID:        key.OrgID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		Scope:        grant.Scope,
		Raw:          grant.Raw,
		CreatedAt:    now,
	}
	if grant.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		credential.ExpiresAt = &expiresAt
	}
	if err = s.putJSON(ctx, s.credentialKey(key), credential, s.config.CredentialTTL); err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	s.notifier.FlowCompleted(ctx, key)
	return CallbackResult{Key: key, ExpiresAt: now.Add(s.config.CredentialTTL)}, nil
}

// consumeState compares before taking so a forged callback cannot burn a
// legitimate pending state. If another writer replaced the state between the
// compare and the take, the taken record is put back with its remaining TTL.
func (s *Service) consumeState(ctx context.Context, key CompositeKey, csrfToken string) error {
	stateKey := s.stateKey(key)
	raw, found, err := s.store.Get(ctx, stateKey)
	if err != nil {
		return err
	}
	if !found {
		return NewStateExpiredError(key)
	}
	pending, err := decodeAuthorizationState(raw)
	if err != nil {
		return err
	}
	if !csrfTokensEqual(pending.CSRFToken, csrfToken) {
		return NewStateMismatchError(key)
	}

	raw, found, err = s.store.Take(ctx, stateKey)
	if err != nil {
		return err
	}
	if !found {
		return NewStateExpiredError(key)
	}
	taken, err := decodeAuthorizationState(raw)
	if err != nil {
		return err
	}
	if !csrfTokensEqual(taken.CSRFToken, csrfToken) {
		if remaining := taken.ExpiresAt().Sub(s.now().UTC()); remaining > 0 {
			if restoreErr := s.store.Put(ctx, stateKey, raw, remaining); restoreErr != nil {
				s.logWarn(ctx, "pending state restore failed", map[string]any{
					"provider_id": key.ProviderID,
					"user_id":     key.UserID,
					"org_id":      key.OrgID,
					"error":       restoreErr.Error(),
				})
			}
		}
		return NewStateMismatchError(key)
	}
	return nil
}

func (s *Service) putJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("core: encode record: %w", err)
	}
	return s.store.Put(ctx, key, payload, ttl)
}

func (s *Service) resolveProvider(providerID string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	providerID = normalizeProviderID(providerID)
	if providerID == "" {
		return nil, s.mapError(NewBadInputError("provider id is required"))
	}
	provider, ok := s.registry.Get(providerID)
	if ok {
		return provider, nil
	}
	wrapped := goerrors.New(
		fmt.Sprintf("provider %q is not registered", providerID),
		goerrors.CategoryNotFound,
	).WithTextCode(ErrorProviderNotFound)
	return nil, s.mapError(wrapped.WithMetadata(map[string]any{"provider_id": providerID}))
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
