// Package store composes the durable KVStore backends with an in-process
// fallback so the authorization flow keeps working through backend outages.
package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	OutcomeDurableFailed     = "durable_failed"
	OutcomeFallbackSucceeded = "fallback_succeeded"
	OutcomeFallbackFailed    = "fallback_failed"
	OutcomeFallbackServed    = "fallback_served"
)

type FailoverDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Outcome    string
	Durable    string
	Key        string
	Error      string
}

type FailoverDiagnosticHook func(event FailoverDiagnostic)

type FailoverOption func(*FailoverStore)

// FailoverStore sends every operation to the durable backend first and falls
// back to an in-process MemoryStore when the durable call errors.
//
// A fallback copy only exists while it is newer than the durable one: a
// successful durable Put clears it. Reads therefore prefer the fallback. When
// a durable Put, Take or Delete fails, a tombstone hides whatever the durable
// backend still holds for the key until a later durable call succeeds.
type FailoverStore struct {
	durable        core.KVStore
	fallback       core.KVStore
	tombstones     *core.MemoryStore
	tombstoneTTL   time.Duration
	diagnosticHook FailoverDiagnosticHook
	logger         core.Logger
	now            func() time.Time
}

const defaultTombstoneTTL = time.Hour

func NewFailoverStore(durable core.KVStore, opts ...FailoverOption) (*FailoverStore, error) {
	if durable == nil {
		return nil, fmt.Errorf("store: durable store is required")
	}
	store := &FailoverStore{
		durable:      durable,
		tombstoneTTL: defaultTombstoneTTL,
		logger:       glog.Nop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	if store.now == nil {
		store.now = func() time.Time { return time.Now().UTC() }
	}
	if store.fallback == nil {
		store.fallback = core.NewMemoryStore(core.WithMemoryStoreClock(store.now))
	}
	if store.tombstoneTTL <= 0 {
		store.tombstoneTTL = defaultTombstoneTTL
	}
	store.tombstones = core.NewMemoryStore(core.WithMemoryStoreClock(store.now))
	store.logger = glog.Ensure(store.logger)
	return store, nil
}

func WithFallbackStore(fallback core.KVStore) FailoverOption {
	return func(s *FailoverStore) {
		if s == nil {
			return
		}
		s.fallback = fallback
	}
}

// WithTombstoneTTL bounds how long a durable copy that could not be cleared
// stays hidden. It should outlive the longest record TTL.
func WithTombstoneTTL(ttl time.Duration) FailoverOption {
	return func(s *FailoverStore) {
		if s == nil {
			return
		}
		s.tombstoneTTL = ttl
	}
}

func WithFailoverDiagnostics(hook FailoverDiagnosticHook) FailoverOption {
	return func(s *FailoverStore) {
		if s == nil {
			return
		}
		s.diagnosticHook = hook
	}
}

func WithFailoverLogger(logger core.Logger) FailoverOption {
	return func(s *FailoverStore) {
		if s == nil {
			return
		}
		s.logger = logger
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(s *FailoverStore) {
		if s == nil {
			return
		}
		s.now = now
	}
}

func (s *FailoverStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return fmt.Errorf("store: failover store is nil")
	}
	err := s.durable.Put(ctx, key, value, ttl)
	if err == nil {
		_ = s.fallback.Delete(ctx, key)
		_ = s.tombstones.Delete(ctx, key)
		return nil
	}
	s.emit("put", OutcomeDurableFailed, key, err)
	if fallbackErr := s.fallback.Put(ctx, key, value, ttl); fallbackErr != nil {
		s.emit("put", OutcomeFallbackFailed, key, fallbackErr)
		return fmt.Errorf("store: durable put failed: %v; fallback put failed: %w", err, fallbackErr)
	}
	s.bury(ctx, key, ttl)
	s.emit("put", OutcomeFallbackSucceeded, key, err)
	return nil
}

func (s *FailoverStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store: failover store is nil")
	}
	fallbackValue, fallbackFound, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr != nil {
		s.emit("get", OutcomeFallbackFailed, key, fallbackErr)
	}
	if fallbackFound {
		s.emit("get", OutcomeFallbackServed, key, nil)
		return fallbackValue, true, nil
	}
	if s.buried(ctx, key) {
		s.exhume(ctx, "get", key)
		return nil, false, nil
	}

	value, found, err := s.durable.Get(ctx, key)
	if err != nil {
		s.emit("get", OutcomeDurableFailed, key, err)
		if fallbackErr != nil {
			return nil, false, fmt.Errorf("store: durable get failed: %v; fallback get failed: %w", err, fallbackErr)
		}
		return nil, false, nil
	}
	return value, found, nil
}

// Take clears both backends. The fallback value wins because it is the most
// recent write for the key.
func (s *FailoverStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store: failover store is nil")
	}
	fallbackValue, fallbackFound, fallbackErr := s.fallback.Take(ctx, key)
	if fallbackErr != nil {
		s.emit("take", OutcomeFallbackFailed, key, fallbackErr)
	}
	buried := s.buried(ctx, key)

	value, found, err := s.durable.Take(ctx, key)
	if err != nil {
		s.emit("take", OutcomeDurableFailed, key, err)
		s.bury(ctx, key, 0)
	} else if buried {
		_ = s.tombstones.Delete(ctx, key)
	}

	switch {
	case fallbackFound:
		s.emit("take", OutcomeFallbackServed, key, nil)
		return fallbackValue, true, nil
	case err == nil && found && !buried:
		return value, true, nil
	case err != nil && fallbackErr != nil:
		return nil, false, fmt.Errorf("store: durable take failed: %v; fallback take failed: %w", err, fallbackErr)
	}
	return nil, false, nil
}

func (s *FailoverStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("store: failover store is nil")
	}
	fallbackErr := s.fallback.Delete(ctx, key)
	err := s.durable.Delete(ctx, key)
	if err == nil {
		_ = s.tombstones.Delete(ctx, key)
		return nil
	}
	s.emit("delete", OutcomeDurableFailed, key, err)
	if fallbackErr != nil {
		return fmt.Errorf("store: durable delete failed: %v; fallback delete failed: %w", err, fallbackErr)
	}
	s.bury(ctx, key, 0)
	return nil
}

// bury hides the durable copy of key until a durable write or delete
// succeeds.
func (s *FailoverStore) bury(ctx context.Context, key string, ttl time.Duration) {
	if ttl < s.tombstoneTTL {
		ttl = s.tombstoneTTL
	}
	_ = s.tombstones.Put(ctx, key, []byte{1}, ttl)
}

func (s *FailoverStore) buried(ctx context.Context, key string) bool {
	_, found, _ := s.tombstones.Get(ctx, key)
	return found
}

// exhume retries the durable delete behind a tombstone and drops the
// tombstone once the durable copy is gone.
func (s *FailoverStore) exhume(ctx context.Context, operation string, key string) {
	if err := s.durable.Delete(ctx, key); err != nil {
		s.emit(operation, OutcomeDurableFailed, key, err)
		return
	}
	_ = s.tombstones.Delete(ctx, key)
}

func (s *FailoverStore) emit(operation string, outcome string, key string, err error) {
	if s == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	event := FailoverDiagnostic{
		OccurredAt: s.now().UTC(),
		Operation:  operation,
		Outcome:    outcome,
		Durable:    describeStore(s.durable),
		Key:        key,
		Error:      msg,
	}
	if s.logger != nil && outcome != OutcomeFallbackServed {
		s.logger.Warn("kv store fallback",
			"operation", event.Operation,
			"outcome", event.Outcome,
			"durable", event.Durable,
			"key", event.Key,
			"error", event.Error,
		)
	}
	if s.diagnosticHook != nil {
		s.diagnosticHook(event)
	}
}

func describeStore(store core.KVStore) string {
	if store == nil {
		return ""
	}
	if named, ok := store.(interface{ Name() string }); ok {
		if name := strings.TrimSpace(named.Name()); name != "" {
			return name
		}
	}
	return reflect.TypeOf(store).String()
}

var _ core.KVStore = (*FailoverStore)(nil)
