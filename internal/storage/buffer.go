package storage

import (
	"context"
	"slices"
)

// Reader is the read half of Store.
type Reader interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Has(ctx context.Context, ns Namespace, key string) (bool, error)
}

// Entry is one buffered write.
type Entry struct {
	Namespace Namespace
	Key       string
	Value     []byte
}

type entryKey struct {
	ns  Namespace
	key string
}

// Buffer collects writes on top of a Reader so a backend can apply them in one
// step once the transaction function succeeds. Reads observe earlier writes
// made through the same buffer.
type Buffer struct {
	base   Reader
	writes map[entryKey][]byte
	order  []entryKey
}

// NewBuffer starts an empty write set over base.
func NewBuffer(base Reader) *Buffer {
	return &Buffer{base: base, writes: make(map[entryKey][]byte)}
}

func (b *Buffer) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	if v, ok := b.writes[entryKey{ns, key}]; ok {
		return slices.Clone(v), nil
	}
	return b.base.Get(ctx, ns, key)
}

func (b *Buffer) Set(_ context.Context, ns Namespace, key string, value []byte) error {
	k := entryKey{ns, key}
	if _, ok := b.writes[k]; !ok {
		b.order = append(b.order, k)
	}
	b.writes[k] = slices.Clone(value)
	return nil
}

func (b *Buffer) Has(ctx context.Context, ns Namespace, key string) (bool, error) {
	if _, ok := b.writes[entryKey{ns, key}]; ok {
		return true, nil
	}
	return b.base.Has(ctx, ns, key)
}

// Entries returns buffered writes in first-write order, last value wins.
func (b *Buffer) Entries() []Entry {
	out := make([]Entry, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, Entry{Namespace: k.ns, Key: k.key, Value: b.writes[k]})
	}
	return out
}
