package app

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/register_repo"
	"stockledger/pkg/logger"
)

// AuditStore writes and reads the audit trail.
type AuditStore interface {
	audit.Recorder
	audit.Reader
}

// Storage bundles one driver's repositories.
type Storage struct {
	Driver string

	// Pool is nil with the in-memory driver.
	Pool *postgres.Pool
	// Memory is nil with the postgres driver.
	Memory *memory.Store

	TxManager tx.Manager

	Items      item.Repository
	Warehouses warehouse.Repository
	Units      unit.Repository
	Partners   partner.Repository

	Moves    stock.MoveRepository
	Balances stock.BalanceRepository

	Events      outbox.Publisher
	Audit       AuditStore
	Idempotency idempotency.Store

	pgTx *postgres.TxManager
}

// OpenStorage connects the configured driver. With postgres and
// database.auto_migrate the schema is migrated first.
func OpenStorage(ctx context.Context, cfg config.Config, codec *audit.Codec) (*Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return openMemory(cfg, codec), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, codec)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openMemory(cfg config.Config, codec *audit.Codec) *Storage {
	store := memory.NewStore(memory.WithLockTimeout(cfg.Database.LockTimeout))
	return &Storage{
		Driver:      config.DriverMemory,
		Memory:      store,
		TxManager:   memory.NewTxManager(store),
		Items:       memory.NewItemRepo(store),
		Warehouses:  memory.NewWarehouseRepo(store),
		Units:       memory.NewUnitRepo(store),
		Partners:    memory.NewPartnerRepo(store),
		Moves:       memory.NewMoveRepo(store),
		Balances:    memory.NewBalanceRepo(store),
		Events:      memory.NewOutboxPublisher(store),
		Audit:       memory.NewAuditLog(store, codec),
		Idempotency: memory.NewIdempotencyStore(store, cfg.Idempotency.TTL),
	}
}

func openPostgres(ctx context.Context, cfg config.Config, codec *audit.Codec) (*Storage, error) {
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.Database.DSN, postgres.MigrateUp); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.ApplicationName = cfg.App.Name
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}
	if cfg.Database.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}
	if cfg.Database.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	txOpts := postgres.DefaultTxOptions()
	if cfg.Database.StatementTimeout > 0 {
		txOpts.StatementTimeout = cfg.Database.StatementTimeout
	}
	if cfg.Database.LockTimeout > 0 {
		txOpts.LockTimeout = cfg.Database.LockTimeout
	}
	txm := postgres.NewTxManager(pool, txOpts)

	return &Storage{
		Driver:      config.DriverPostgres,
		Pool:        pool,
		TxManager:   txm,
		Items:       catalog_repo.NewItemRepo(txm),
		Warehouses:  catalog_repo.NewWarehouseRepo(txm),
		Units:       catalog_repo.NewUnitRepo(txm),
		Partners:    catalog_repo.NewPartnerRepo(txm),
		Moves:       register_repo.NewMoveRepo(txm),
		Balances:    register_repo.NewBalanceRepo(txm),
		Events:      postgres.NewOutboxPublisher(txm),
		Audit:       postgres.NewAuditLog(txm, codec),
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		pgTx:        txm,
	}, nil
}

// Ping checks that the storage answers.
func (s *Storage) Ping(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	return s.Memory.Ping(ctx)
}

// NewRelay builds the outbox relay of the driver.
func (s *Storage) NewRelay(batchSize int, handler outbox.Handler) outbox.Relay {
	if s.pgTx != nil {
		return postgres.NewOutboxRelay(s.pgTx, batchSize, handler)
	}
	return memory.NewOutboxRelay(s.Memory, batchSize, handler)
}

// OutboxMaintainer is implemented by relays that keep a dead-letter queue.
type OutboxMaintainer interface {
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// BatchInserter returns the COPY-based bulk loader, nil with the in-memory driver.
func (s *Storage) BatchInserter() *postgres.BatchInserter {
	if s.pgTx == nil {
		return nil
	}
	return postgres.NewBatchInserter(s.pgTx)
}

// Close releases the connection pool.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		logger.Info(context.Background(), "database pool closed")
	}
}
