package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"ecoprado/pkg/platform/sentinel"
)

// Memory is an in-process Store. Transactions are serialized by a single lock
// and their writes are buffered until the transaction function succeeds.
type Memory struct {
	txMu    sync.Mutex
	mu      sync.RWMutex
	data    map[Namespace]map[string][]byte
	timeout time.Duration
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryTxTimeout overrides DefaultTxTimeout.
func WithMemoryTxTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.timeout = d
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{data: make(map[Namespace]map[string][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, ns Namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[ns][key]; ok {
		return slices.Clone(v), nil
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) Set(_ context.Context, ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(ns, key, value)
	return nil
}

func (m *Memory) Has(_ context.Context, ns Namespace, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[ns][key]
	return ok, nil
}

// Delete removes a key. The ledger never deletes; tests use it to simulate
// gaps in sequential logs.
func (m *Memory) Delete(_ context.Context, ns Namespace, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[ns], key)
}

func (m *Memory) RunInTx(ctx context.Context, fn func(store Store) error) error {
	ctx, cancel, err := BeginContext(ctx, m.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	m.txMu.Lock()
	defer m.txMu.Unlock()

	// Check again after acquiring lock
	if err := CheckContext(ctx); err != nil {
		return err
	}

	buf := NewBuffer(m)
	if err := fn(buf); err != nil {
		return err
	}
	if err := CheckContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range buf.Entries() {
		m.setLocked(e.Namespace, e.Key, e.Value)
	}
	return nil
}

func (m *Memory) setLocked(ns Namespace, key string, value []byte) {
	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[ns] = bucket
	}
	bucket[key] = slices.Clone(value)
}
