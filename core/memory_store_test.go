package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now))
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	clock.Advance(59 * time.Second)
	value, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("expected value before ttl, got %q %v %v", value, ok, err)
	}
	clock.Advance(time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected value to expire at ttl")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped on read")
	}
}

func TestMemoryStore_TakeIsSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, ok, err := store.Take(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("expected first take to return value, got %q %v %v", value, ok, err)
	}
	if _, ok, _ := store.Take(ctx, "k"); ok {
		t.Fatalf("expected second take to miss")
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected get after take to miss")
	}
}

func TestMemoryStore_ConcurrentTakeHasOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Take(ctx, "k"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}
}

func TestMemoryStore_PutPrunesExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now))
	ctx := context.Background()

	if err := store.Put(ctx, "stale", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put stale: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := store.Put(ctx, "fresh", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put fresh: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected stale entry to be pruned on write, got %d entries", store.Len())
	}
}

func TestMemoryStore_PutEnforcesMaxEntries(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now), WithMemoryStoreMaxEntries(2))
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, key, []byte(key), time.Hour); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
		clock.Advance(time.Second)
	}

	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest entry to be evicted when capacity is exceeded")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok, _ := store.Get(ctx, key); !ok {
			t.Fatalf("expected %s to remain after eviction", key)
		}
	}
}

func TestMemoryStore_PutOverwritesValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "k", []byte("one"), time.Minute)
	_ = store.Put(ctx, "k", []byte("two"), time.Minute)

	value, ok, _ := store.Get(ctx, "k")
	if !ok || string(value) != "two" {
		t.Fatalf("expected last write to win, got %q", value)
	}
}

func TestMemoryStore_RejectsEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), "  ", []byte("v"), time.Minute); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestMemoryStore_JanitorPrunes(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = store.Put(ctx, "k", []byte("v"), time.Minute)
	clock.Advance(2 * time.Minute)
	store.StartJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to prune expired entries")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryStore_SweepsOncePerPruneInterval(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithMemoryStoreClock(clock.Now), WithMemoryStorePruneInterval(time.Minute))
	ctx := context.Background()

	_ = store.Put(ctx, "stale", []byte("v"), 10*time.Second)
	clock.Advance(20 * time.Second)
	_ = store.Put(ctx, "fresh", []byte("v"), time.Hour)
	if store.Len() != 2 {
		t.Fatalf("expected no sweep inside the prune interval, got %d entries", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "stale"); ok {
		t.Fatalf("expected expired entry to miss before the sweep")
	}

	_ = store.Put(ctx, "stale-2", []byte("v"), 10*time.Second)
	clock.Advance(time.Minute)
	_ = store.Put(ctx, "other", []byte("v"), time.Hour)
	if store.Len() != 2 {
		t.Fatalf("expected sweep after the prune interval, got %d entries", store.Len())
	}
}

func TestMemoryStore_OverwriteRefreshesEvictionOrder(t *testing.T) {
	store := NewMemoryStore(WithMemoryStoreMaxEntries(2))
	ctx := context.Background()

	_ = store.Put(ctx, "a", []byte("1"), time.Hour)
	_ = store.Put(ctx, "b", []byte("1"), time.Hour)
	_ = store.Put(ctx, "a", []byte("2"), time.Hour)
	_ = store.Put(ctx, "c", []byte("1"), time.Hour)

	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Fatalf("expected b to be the oldest write and evicted")
	}
	if value, ok, _ := store.Get(ctx, "a"); !ok || string(value) != "2" {
		t.Fatalf("expected rewritten a to survive, got %q %v", value, ok)
	}
	if _, ok, _ := store.Take(ctx, "c"); !ok {
		t.Fatalf("expected c to remain")
	}
	_ = store.Put(ctx, "d", []byte("1"), time.Hour)
	if store.Len() != 2 {
		t.Fatalf("expected take to free its slot, got %d entries", store.Len())
	}
}
