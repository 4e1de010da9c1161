package core

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"
)

type testProvider struct {
	id         string
	authErr    error
	categories []ResourceCategory
	exchange   func(code string) (TokenGrant, error)
	fetch      func(category ResourceCategory, credential Credential, limit int) ([]IntegrationItem, error)

	mu            sync.Mutex
	exchangeCodes []string
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) AuthorizationURL(state string) (string, error) {
	if p.authErr != nil {
		return "", p.authErr
	}
	return "https://provider.example/oauth/authorize?client_id=client&state=" + url.QueryEscape(state), nil
}

func (p *testProvider) ExchangeCode(_ context.Context, code string) (TokenGrant, error) {
	p.mu.Lock()
	p.exchangeCodes = append(p.exchangeCodes, code)
	p.mu.Unlock()
	if p.exchange != nil {
		return p.exchange(code)
	}
	return TokenGrant{
		AccessToken:  "access_" + code,
		RefreshToken: "refresh_" + code,
		TokenType:    "bearer",
		ExpiresIn:    1800,
		Raw:          map[string]any{"access_token": "access_" + code},
	}, nil
}

func (p *testProvider) Categories() []ResourceCategory {
	return append([]ResourceCategory(nil), p.categories...)
}

func (p *testProvider) FetchCategory(_ context.Context, category ResourceCategory, credential Credential, limit int) ([]IntegrationItem, error) {
	if p.fetch != nil {
		return p.fetch(category, credential, limit)
	}
	return nil, nil
}

func (p *testProvider) exchangeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.exchangeCodes)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	keys []CompositeKey
}

func (n *recordingNotifier) FlowCompleted(_ context.Context, key CompositeKey) {
	n.mu.Lock()
	n.keys = append(n.keys, key)
	n.mu.Unlock()
}

func (n *recordingNotifier) completed() []CompositeKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]CompositeKey(nil), n.keys...)
}

type serviceFixture struct {
	svc      *Service
	store    *MemoryStore
	clock    *fakeClock
	provider *testProvider
	notifier *recordingNotifier
}

func newServiceFixture(t *testing.T, provider *testProvider, cfg Config, opts ...Option) serviceFixture {
	t.Helper()
	if provider == nil {
		provider = &testProvider{id: "hubspot"}
	}
	registry := NewProviderRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now))
	notifier := &recordingNotifier{}
	base := []Option{
		WithRegistry(registry),
		WithStore(store),
		WithClock(clock.Now),
		WithCompletionNotifier(notifier),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return serviceFixture{svc: svc, store: store, clock: clock, provider: provider, notifier: notifier}
}

func (f serviceFixture) authorize(t *testing.T, userID string, orgID string) AuthorizeResponse {
	t.Helper()
	response, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ProviderID: f.provider.id,
		UserID:     userID,
		OrgID:      orgID,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return response
}

func (f serviceFixture) pendingState(t *testing.T, userID string, orgID string) (AuthorizationState, bool) {
	t.Helper()
	raw, found, err := f.store.Get(context.Background(), f.svc.stateKey(CompositeKey{
		ProviderID: f.provider.id,
		UserID:     userID,
		OrgID:      orgID,
	}))
	if err != nil {
		t.Fatalf("read pending state: %v", err)
	}
	if !found {
		return AuthorizationState{}, false
	}
	record, err := decodeAuthorizationState(raw)
	if err != nil {
		t.Fatalf("decode pending state: %v", err)
	}
	return record, true
}

func forgedState(t *testing.T, token string, userID string, orgID string) string {
	t.Helper()
	encoded, err := encodeStateParam(stateParam{State: token, UserID: userID, OrgID: orgID})
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	return encoded
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("store offline")
}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("store offline")
}

func (brokenStore) Delete(context.Context, string) error {
	return fmt.Errorf("store offline")
}

func (brokenStore) Take(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("store offline")
}
