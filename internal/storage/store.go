package storage

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store,Tx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ecoprado/pkg/platform/sentinel"
)

// Namespace partitions the key space the way the ledger's persisted maps do.
type Namespace string

const (
	NamespaceUser       Namespace = "user"
	NamespaceAction     Namespace = "action"
	NamespaceRedemption Namespace = "redemption"
	NamespaceBalance    Namespace = "balance"
	// NamespaceInstance holds singleton keys (admin, supply, id counters).
	NamespaceInstance Namespace = "instance"
)

// Store is the injected key-value dependency. Get returns
// sentinel.ErrNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Set(ctx context.Context, ns Namespace, key string, value []byte) error
	Has(ctx context.Context, ns Namespace, key string) (bool, error)
}

// Tx provides the all-or-nothing boundary every public ledger operation runs in.
// The store handed to fn is only valid until fn returns. A non-nil error from fn
// discards every write made through that store.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// GetJSON loads the value at ns/key into dst.
func GetJSON(ctx context.Context, st Store, ns Namespace, key string, dst any) error {
	raw, err := st.Get(ctx, ns, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s/%s: %w", ns, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at ns/key.
func SetJSON(ctx context.Context, st Store, ns Namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	return st.Set(ctx, ns, key, raw)
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
