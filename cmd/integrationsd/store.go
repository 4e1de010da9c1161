package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/goliatone/go-integrations/core"
	integrationmigrations "github.com/goliatone/go-integrations/migrations"
	"github.com/goliatone/go-integrations/store"
	redisstore "github.com/goliatone/go-integrations/store/redis"
	sqlstore "github.com/goliatone/go-integrations/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// openedStore is the KVStore the service runs on plus what the daemon needs
// to check and release it.
type openedStore struct {
	store core.KVStore
	ping  func(ctx context.Context) error
	close func() error
}

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool { return false }
func (c persistenceConfig) GetDriver() string { return c.driver }
func (c persistenceConfig) GetServer() string { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string { return "go-integrations" }

func openStore(ctx context.Context, cfg daemonConfig, logger core.Logger) (openedStore, error) {
	fallback := core.NewMemoryStore(core.WithMemoryStoreMaxEntries(cfg.MaxMemoryKeys))
	if cfg.JanitorInterval > 0 {
		fallback.StartJanitor(ctx, cfg.JanitorInterval)
	}

	switch cfg.StoreDriver {
	case driverMemory:
		return openedStore{
			store: fallback,
			ping:  func(context.Context) error { return nil },
			close: func() error { return nil },
		}, nil
	case driverRedis:
		durable, client, err := redisstore.NewFromURL(cfg.RedisURL)
		if err != nil {
			return openedStore{}, err
		}
		failover, err := newFailover(durable, fallback, cfg, logger)
		if err != nil {
			_ = client.Close()
			return openedStore{}, err
		}
		return openedStore{store: failover, ping: durable.Ping, close: client.Close}, nil
	case driverSQLite, driverPostgres:
		return openSQLStore(ctx, cfg, fallback, logger)
	default:
		return openedStore{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openSQLStore(ctx context.Context, cfg daemonConfig, fallback core.KVStore, logger core.Logger) (openedStore, error) {
	sqlDriver, dialect, err := sqlDriverFor(cfg.StoreDriver)
	if err != nil {
		return openedStore{}, err
	}
	migrationDialect, err := integrationmigrations.DialectForDriver(cfg.StoreDriver)
	if err != nil {
		return openedStore{}, err
	}

	sqlDB, err := sql.Open(sqlDriver, cfg.DatabaseDSN)
	if err != nil {
		return openedStore{}, fmt.Errorf("open %s: %w", sqlDriver, err)
	}
	if sqlDriver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: sqlDriver, server: cfg.DatabaseDSN}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return openedStore{}, fmt.Errorf("persistence client: %w", err)
	}

	err = integrationmigrations.Register(ctx, migrationDialect, func(_ context.Context, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	})
	if err != nil {
		_ = client.Close()
		return openedStore{}, fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return openedStore{}, fmt.Errorf("migrate: %w", err)
	}

	durable, err := sqlstore.NewStoreFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return openedStore{}, err
	}
	if cfg.JanitorInterval > 0 {
		go pruneExpired(ctx, durable, cfg.JanitorInterval, logger)
	}
	failover, err := newFailover(durable, fallback, cfg, logger)
	if err != nil {
		_ = client.Close()
		return openedStore{}, err
	}
	return openedStore{store: failover, ping: durable.Ping, close: client.Close}, nil
}

func sqlDriverFor(storeDriver string) (string, schema.Dialect, error) {
	switch storeDriver {
	case driverSQLite:
		return "sqlite3", sqlitedialect.New(), nil
	case driverPostgres:
		return "postgres", pgdialect.New(), nil
	default:
		return "", nil, fmt.Errorf("store driver %q is not SQL backed", storeDriver)
	}
}

// newFailover sizes tombstones to the longest record TTL: a durable copy
// written before the tombstone has expired by the time the tombstone does.
func newFailover(durable core.KVStore, fallback core.KVStore, cfg daemonConfig, logger core.Logger) (*store.FailoverStore, error) {
	return store.NewFailoverStore(
		durable,
		store.WithFallbackStore(fallback),
		store.WithTombstoneTTL(max(cfg.StateTTL, cfg.CredentialTTL)),
		store.WithFailoverLogger(logger),
	)
}

// pruneExpired deletes expired SQL rows on every tick until ctx ends. Reads
// already ignore expired rows, so pruning only bounds table growth.
func pruneExpired(ctx context.Context, durable *sqlstore.Store, interval time.Duration, logger core.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := durable.Prune(ctx)
			if err != nil {
				logger.Warn("kv prune failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				logger.Debug("kv prune removed expired entries", "removed", removed)
			}
		}
	}
}
