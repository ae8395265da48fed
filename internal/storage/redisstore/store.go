// Package redisstore persists the ledger key space in Redis. Transactions use
// optimistic locking: every key read inside RunInTx is WATCHed and the buffered
// writes are applied with MULTI/EXEC, so a concurrent change aborts the commit
// with sentinel.ErrConflict instead of interleaving.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"ecoprado/internal/storage"
	"ecoprado/pkg/platform/sentinel"
)

const defaultKeyPrefix = "ecoprado"

// Store is a Redis-backed storage.Store and storage.Tx.
type Store struct {
	client    *redis.Client
	prefix    string
	timeout   time.Duration
	conflicts prometheus.Counter
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key, letting several ledgers share a database.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithConflictCounter counts transactions aborted by a concurrent writer.
func WithConflictCounter(c prometheus.Counter) Option {
	return func(s *Store) {
		s.conflicts = c
	}
}

// New wraps an existing client; its lifecycle stays with the caller.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) key(ns storage.Namespace, key string) string {
	return s.prefix + ":" + string(ns) + ":" + key
}

func (s *Store) Get(ctx context.Context, ns storage.Namespace, key string) ([]byte, error) {
	return get(ctx, s.client, s.key(ns, key))
}

func (s *Store) Set(ctx context.Context, ns storage.Namespace, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(ns, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	return has(ctx, s.client, s.key(ns, key))
}

// RunInTx runs fn against a buffered view whose reads are WATCHed.
func (s *Store) RunInTx(ctx context.Context, fn func(store storage.Store) error) error {
	ctx, cancel, err := storage.BeginContext(ctx, s.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		view := storage.NewBuffer(&watchingReader{store: s, tx: tx})
		if err := fn(view); err != nil {
			return err
		}
		entries := view.Entries()
		if len(entries) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, e := range entries {
				pipe.Set(ctx, s.key(e.Namespace, e.Key), e.Value, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		if s.conflicts != nil {
			s.conflicts.Inc()
		}
		return fmt.Errorf("redis transaction: %w", sentinel.ErrConflict)
	}
	return err
}

// watchingReader WATCHes each key before reading it so EXEC fails if another
// client modified anything this transaction depended on.
type watchingReader struct {
	store *Store
	tx    *redis.Tx
}

func (r *watchingReader) Get(ctx context.Context, ns storage.Namespace, key string) ([]byte, error) {
	k := r.store.key(ns, key)
	if err := r.tx.Watch(ctx, k).Err(); err != nil {
		return nil, fmt.Errorf("redis watch %s: %w", k, err)
	}
	return get(ctx, r.tx, k)
}

func (r *watchingReader) Has(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	k := r.store.key(ns, key)
	if err := r.tx.Watch(ctx, k).Err(); err != nil {
		return false, fmt.Errorf("redis watch %s: %w", k, err)
	}
	return has(ctx, r.tx, k)
}

// keyReader is satisfied by both *redis.Client and *redis.Tx.
type keyReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

func get(ctx context.Context, c keyReader, key string) ([]byte, error) {
	v, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func has(ctx context.Context, c keyReader, key string) (bool, error) {
	n, err := c.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Store)(nil)
)
