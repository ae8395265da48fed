// Package identity stores and retrieves user accounts keyed by their public
// identifier.
package identity

import (
	"context"

	"ecoprado/internal/ledger"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// DuplicatePolicy decides what Register does with an id that already exists.
type DuplicatePolicy int

const (
	// OverwriteDuplicates replaces the stored account with a fresh one.
	OverwriteDuplicates DuplicatePolicy = iota
	// RejectDuplicates fails the registration with CodeConflict.
	RejectDuplicates
)

// RankingCandidates is the fixed set of ids Ranking inspects. Ranking is not a
// full scan of registered users.
var RankingCandidates = []id.UserID{"user1", "user2", "user3", "user4", "user5"}

// Registry reads and writes accounts through the transaction's store.
type Registry struct {
	duplicates DuplicatePolicy
}

type Option func(*Registry)

func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(r *Registry) {
		r.duplicates = p
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{duplicates: OverwriteDuplicates}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates an account with zeroed totals. state.UserCount grows only
// for ids that were not registered before.
func (r *Registry) Register(ctx context.Context, st storage.Store, state *ledger.State, userID, name, role, municipality string) (*UserAccount, error) {
	uid, err := id.ParseUserID(userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid user id")
	}
	parsedRole, err := ParseRole(role)
	if err != nil {
		return nil, err
	}

	exists, err := st.Has(ctx, storage.NamespaceUser, uid.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check user")
	}
	if exists && r.duplicates == RejectDuplicates {
		return nil, dErrors.New(dErrors.CodeConflict, "user already exists")
	}

	account := NewUserAccount(uid, name, parsedRole, municipality)
	if err := r.Update(ctx, st, account); err != nil {
		return nil, err
	}
	if !exists {
		state.UserCount++
	}
	return account, nil
}

// Get returns the account, or nil when the id is unknown.
func (r *Registry) Get(ctx context.Context, st storage.Store, userID id.UserID) (*UserAccount, error) {
	var account UserAccount
	err := storage.GetJSON(ctx, st, storage.NamespaceUser, userID.String(), &account)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return &account, nil
}

// Update replaces the whole stored record.
func (r *Registry) Update(ctx context.Context, st storage.Store, account *UserAccount) error {
	if account == nil || account.ID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "account id is required")
	}
	if err := storage.SetJSON(ctx, st, storage.NamespaceUser, account.ID.String(), account); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	return nil
}

// Ranking returns the candidate accounts registered in municipality, in
// candidate order. Results are not sorted by CO2 saved.
func (r *Registry) Ranking(ctx context.Context, st storage.Store, municipality string) ([]*UserAccount, error) {
	var users []*UserAccount
	for _, candidate := range RankingCandidates {
		account, err := r.Get(ctx, st, candidate)
		if err != nil {
			return nil, err
		}
		if account != nil && account.Municipality == municipality {
			users = append(users, account)
		}
	}
	return users, nil
}
