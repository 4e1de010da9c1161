package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
)

type switchableStore struct {
	mu      sync.Mutex
	offline bool
	inner   *core.MemoryStore
}

func newSwitchableStore() *switchableStore {
	return &switchableStore{inner: core.NewMemoryStore()}
}

func (s *switchableStore) setOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

func (s *switchableStore) down() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (s *switchableStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.down(); err != nil {
		return err
	}
	return s.inner.Put(ctx, key, value, ttl)
}

func (s *switchableStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.down(); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *switchableStore) Delete(ctx context.Context, key string) error {
	if err := s.down(); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

func (s *switchableStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.down(); err != nil {
		return nil, false, err
	}
	return s.inner.Take(ctx, key)
}

func (s *switchableStore) Name() string { return "switchable" }

type diagnosticsRecorder struct {
	mu     sync.Mutex
	events []FailoverDiagnostic
}

func (r *diagnosticsRecorder) record(event FailoverDiagnostic) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *diagnosticsRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Operation+":"+event.Outcome)
	}
	return out
}

func TestFailoverStore_RequiresDurable(t *testing.T) {
	if _, err := NewFailoverStore(nil); err == nil {
		t.Fatalf("expected missing durable store to fail")
	}
}

func TestFailoverStore_BrokenDurableHonorsTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	durable := newSwitchableStore()
	durable.setOffline(true)
	recorder := &diagnosticsRecorder{}
	store, err := NewFailoverStore(durable,
		WithFallbackStore(core.NewMemoryStore(core.WithMemoryStoreClock(clock))),
		WithFailoverDiagnostics(recorder.record),
	)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put through fallback: %v", err)
	}
	value, found, err := store.Get(ctx, "k")
	if err != nil || !found || string(value) != "v" {
		t.Fatalf("expected fallback get to serve value, got %q %v %v", value, found, err)
	}

	now = now.Add(time.Minute + time.Second)
	if _, found, err := store.Get(ctx, "k"); err != nil || found {
		t.Fatalf("expected fallback value to expire, got found=%v err=%v", found, err)
	}

	outcomes := recorder.outcomes()
	if len(outcomes) < 2 || outcomes[0] != "put:"+OutcomeDurableFailed || outcomes[1] != "put:"+OutcomeFallbackSucceeded {
		t.Fatalf("unexpected diagnostics %v", outcomes)
	}
	recorder.mu.Lock()
	durableName := recorder.events[0].Durable
	recorder.mu.Unlock()
	if durableName != "switchable" {
		t.Fatalf("expected durable store name in diagnostics, got %q", durableName)
	}
}

func TestFailoverStore_OutageWritesSurviveRecovery(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	durable.setOffline(true)
	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put during outage: %v", err)
	}
	durable.setOffline(false)

	value, found, err := store.Take(ctx, "k")
	if err != nil || !found || string(value) != "v" {
		t.Fatalf("expected outage write to be readable after recovery, got %q %v %v", value, found, err)
	}
	if _, found, _ := store.Take(ctx, "k"); found {
		t.Fatalf("expected take to clear the fallback copy")
	}
}

func TestFailoverStore_DurablePutClearsStaleFallback(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	durable.setOffline(true)
	_ = store.Put(ctx, "k", []byte("old"), time.Minute)
	durable.setOffline(false)
	if err := store.Put(ctx, "k", []byte("new"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Fatalf("expected no stale fallback value after delete")
	}
}

func TestFailoverStore_TakeIsSingleUseAcrossBackends(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, found, err := store.Take(ctx, "k"); err != nil || !found {
		t.Fatalf("expected first take to succeed, got %v %v", found, err)
	}
	durable.setOffline(true)
	if _, found, err := store.Take(ctx, "k"); err != nil || found {
		t.Fatalf("expected second take to miss, got %v %v", found, err)
	}
}

func TestFailoverStore_ServiceFlowWithBrokenDurable(t *testing.T) {
	durable := newSwitchableStore()
	durable.setOffline(true)
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	key := core.StoreKey("integrations", "credentials", core.CompositeKey{ProviderID: "hubspot", UserID: "u1", OrgID: "o1"})
	if err := store.Put(ctx, key, []byte(`{"access_token":"t"}`), 10*time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, found, err := store.Take(ctx, key)
	if err != nil || !found || string(value) != `{"access_token":"t"}` {
		t.Fatalf("expected one-time read through fallback, got %q %v %v", value, found, err)
	}
	if _, found, _ := store.Take(ctx, key); found {
		t.Fatalf("expected credential to be gone after the first read")
	}
}

func TestFailoverStore_OutageWriteShadowsOlderDurableValue(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("A"), time.Minute); err != nil {
		t.Fatalf("put A: %v", err)
	}
	durable.setOffline(true)
	if err := store.Put(ctx, "k", []byte("B"), time.Minute); err != nil {
		t.Fatalf("put B during outage: %v", err)
	}
	durable.setOffline(false)

	value, found, err := store.Get(ctx, "k")
	if err != nil || !found || string(value) != "B" {
		t.Fatalf("expected last write B after recovery, got %q %v %v", value, found, err)
	}
	value, found, err = store.Take(ctx, "k")
	if err != nil || !found || string(value) != "B" {
		t.Fatalf("expected take to return B, got %q %v %v", value, found, err)
	}
	if value, found, _ := store.Get(ctx, "k"); found {
		t.Fatalf("expected older durable value to stay hidden after take, got %q", value)
	}
	if _, found, _ := durable.inner.Get(ctx, "k"); found {
		t.Fatalf("expected take to clear the durable copy")
	}
}

func TestFailoverStore_DeleteDuringOutageStaysDeleted(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("A"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	durable.setOffline(true)
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete during outage: %v", err)
	}
	durable.setOffline(false)

	if value, found, err := store.Get(ctx, "k"); err != nil || found {
		t.Fatalf("expected deleted key to stay gone after recovery, got %q %v %v", value, found, err)
	}
	if _, found, _ := durable.inner.Get(ctx, "k"); found {
		t.Fatalf("expected recovery read to finish the durable delete")
	}

	if err := store.Put(ctx, "k", []byte("C"), time.Minute); err != nil {
		t.Fatalf("put after recovery: %v", err)
	}
	if value, found, err := store.Get(ctx, "k"); err != nil || !found || string(value) != "C" {
		t.Fatalf("expected fresh durable write to be visible, got %q %v %v", value, found, err)
	}
}

func TestFailoverStore_TakeDuringOutageKeepsDurableCopyHidden(t *testing.T) {
	durable := newSwitchableStore()
	store, err := NewFailoverStore(durable)
	if err != nil {
		t.Fatalf("new failover store: %v", err)
	}
	ctx := context.Background()

	_ = store.Put(ctx, "k", []byte("A"), time.Minute)
	durable.setOffline(true)
	_ = store.Put(ctx, "k", []byte("B"), time.Minute)
	if value, found, err := store.Take(ctx, "k"); err != nil || !found || string(value) != "B" {
		t.Fatalf("expected outage take to return B, got %q %v %v", value, found, err)
	}
	durable.setOffline(false)

	if value, found, err := store.Take(ctx, "k"); err != nil || found {
		t.Fatalf("expected stale durable value to stay consumed, got %q %v %v", value, found, err)
	}
}
