package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ecoprado/internal/actions"
	"ecoprado/internal/engine"
	"ecoprado/internal/identity"
	"ecoprado/internal/platform/authz"
	"ecoprado/internal/platform/config"
	"ecoprado/internal/platform/metrics"
	platformredis "ecoprado/internal/platform/redis"
	"ecoprado/internal/storage"
	"ecoprado/internal/storage/redisstore"
	"ecoprado/internal/storage/sqlstore"
	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
	"ecoprado/pkg/platform/audit/publisher"
	"ecoprado/pkg/platform/audit/publishers/kafka"
	auditmemory "ecoprado/pkg/platform/audit/store/memory"
	auditpostgres "ecoprado/pkg/platform/audit/store/postgres"
	"ecoprado/pkg/platform/circuit"
	"ecoprado/pkg/requestcontext"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

// healthCheck reports whether one dependency is reachable.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type storageBackend struct {
	tx     storage.Tx
	db     *sql.DB // set for the postgres backend only
	checks []healthCheck
	close  func()
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*storageBackend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return &storageBackend{
			tx:    storage.NewMemory(storage.WithMemoryTxTimeout(cfg.TxTimeout)),
			close: func() {},
		}, nil

	case config.StorageRedis:
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store := redisstore.New(client.Client,
			redisstore.WithKeyPrefix(cfg.RedisPrefix),
			redisstore.WithTxTimeout(cfg.TxTimeout),
			redisstore.WithConflictCounter(m.StorageConflicts),
		)
		return &storageBackend{
			tx:     store,
			checks: []healthCheck{{name: "redis", check: client.Health}},
			close: func() {
				if err := client.Close(); err != nil {
					log.Warn("failed to close redis client", "error", err)
				}
			},
		}, nil

	case config.StoragePostgres:
		store, err := sqlstore.OpenPostgres(ctx, cfg.DatabaseURL, sqlstore.WithTxTimeout(cfg.TxTimeout))
		if err != nil {
			return nil, err
		}
		return sqlBackend(store, "postgres", store.DB(), log), nil

	case config.StorageSQLite:
		store, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath, sqlstore.WithTxTimeout(cfg.TxTimeout))
		if err != nil {
			return nil, err
		}
		return sqlBackend(store, "sqlite", nil, log), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

func sqlBackend(store *sqlstore.Store, name string, db *sql.DB, log *slog.Logger) *storageBackend {
	return &storageBackend{
		tx:     store,
		db:     db,
		checks: []healthCheck{{name: name, check: store.DB().PingContext}},
		close: func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close database", "backend", name, "error", err)
			}
		},
	}
}

type auditPipeline struct {
	publisher *publisher.Publisher
	checks    []healthCheck
	close     func()
}

func (a *auditPipeline) Emit(ctx context.Context, event audit.Event) error {
	return a.publisher.Emit(ctx, event)
}

// openAudit persists audit events to the Postgres table when the ledger lives
// in Postgres and to memory otherwise. With brokers configured, Kafka becomes
// the primary sink and the store only receives events Kafka refused.
func openAudit(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, backend *storageBackend) (*auditPipeline, error) {
	var (
		sink      audit.Sink
		checks    []healthCheck
		closeSink = func() {}
	)
	switch {
	case backend.db != nil:
		store := auditpostgres.New(backend.db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		sink = store
	default:
		sink = auditmemory.NewInMemoryStore()
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := kafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return nil, err
		}
		if err := kafkaSink.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplication); err != nil {
			kafkaSink.Close()
			return nil, err
		}
		sink = publisher.NewFallbackSink(kafkaSink, sink, circuit.New("audit-kafka"), publisher.WithFallbackLogger(log))
		checks = append(checks, healthCheck{name: "kafka", check: kafkaSink.Ping})
		closeSink = kafkaSink.Close
	}

	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.AuditBuffer),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	)
	return &auditPipeline{
		publisher: pub,
		checks:    checks,
		close: func() {
			pub.Close()
			closeSink()
		},
	}, nil
}

func buildEngine(cfg config.Config, log *slog.Logger, m *metrics.Metrics, backend *storageBackend, auditPublisher engine.AuditPublisher) (*engine.Engine, error) {
	mode, err := actions.ParseRewardMode(cfg.RewardMode)
	if err != nil {
		return nil, err
	}
	duplicates := identity.OverwriteDuplicates
	if cfg.RejectDuplicateUsers {
		duplicates = identity.RejectDuplicates
	}

	auth := authz.AnyOf{authz.NewSignerAuthorizer()}
	if cfg.JWTSigningKey != "" {
		auth = append(auth, authz.NewJWTAuthorizer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience))
	}

	return engine.New(backend.tx, auth,
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithAuditPublisher(auditPublisher),
		engine.WithRewardMode(mode),
		engine.WithDuplicatePolicy(duplicates),
	), nil
}

// bootstrap initializes the token on behalf of the configured admin. The
// process operator stands in for the admin's signature.
func bootstrap(ctx context.Context, e *engine.Engine, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ctx = requestcontext.WithSigners(ctx, id.Address(cfg.TokenAdmin))
	return e.Initialize(ctx, cfg.TokenAdmin, cfg.TokenName, cfg.TokenSymbol)
}
