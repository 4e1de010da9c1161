// Package sqlstore implements core.KVStore on a bun database so pending
// authorization states and credentials survive process restarts.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

type Store struct {
	db   *bun.DB
	repo repository.Repository[*kvEntryRecord]
	now  func() time.Time
}

func NewStore(db *bun.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*kvEntryRecord](db, kvEntryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid kv entry repository wiring: %w", err)
		}
	}
	store := &Store{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *Store) Name() string { return "sql" }

// EnsureSchema creates the entries table when it is missing. Deployments that
// run the embedded migrations do not need it.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.NewCreateTable().
		Model((*kvEntryRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create kv entries table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*kvEntryRecord)(nil)).
		Index("ux_integration_kv_entries_entry_key").
		Unique().
		IfNotExists().
		Column("entry_key").
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create kv entries index: %w", err)
	}
	return nil
}

// Put upserts the entry for key in a single statement so concurrent writers
// for the same key never trip the unique index.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: key is required")
	}
	now := s.now().UTC()
	record := &kvEntryRecord{
		ID:        uuid.NewString(),
		EntryKey:  key,
		Value:     append([]byte(nil), value...),
		CreatedAt: now,
	}
	if ttl > 0 {
		record.ExpiresAtUnixMS = now.Add(ttl).UnixMilli()
	}

	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at_unix_ms = EXCLUDED.expires_at_unix_ms").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: upsert kv entry: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("entry_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: select kv entry: %w", err)
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	record := records[0]
	if record.expired(s.now()) {
		if _, delErr := s.db.NewDelete().
			Model((*kvEntryRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx); delErr != nil {
			return nil, false, fmt.Errorf("sqlstore: purge expired kv entry: %w", delErr)
		}
		return nil, false, nil
	}
	return record.Value, true, nil
}

// Take selects and deletes the entry in one transaction. Only the caller
// whose delete removed the row observes the value.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findEntry(ctx, tx, strings.TrimSpace(key))
		if err != nil || record == nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*kvEntryRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("sqlstore: take kv entry: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil
		}
		if record.expired(s.now()) {
			return nil
		}
		value = record.Value
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.NewDelete().
		Model((*kvEntryRecord)(nil)).
		Where("entry_key = ?", strings.TrimSpace(key)).
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: delete kv entry: %w", err)
	}
	return nil
}

// Prune removes every expired entry and reports how many rows were deleted.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.NewDelete().
		Model((*kvEntryRecord)(nil)).
		Where("expires_at_unix_ms > 0").
		Where("expires_at_unix_ms <= ?", s.now().UnixMilli()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: prune kv entries: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: kv store is not configured")
	}
	return nil
}

func findEntry(ctx context.Context, db bun.IDB, key string) (*kvEntryRecord, error) {
	if key == "" {
		return nil, nil
	}
	record := &kvEntryRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlstore: select kv entry: %w", err)
	}
	return record, nil
}
