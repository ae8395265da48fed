// Package ledger holds the singleton instance state shared by every ledger
// component: token metadata, total supply, and the global id counters.
//
// A State is loaded once at the start of a transaction, handed by pointer to
// the components taking part in the operation, and committed before the
// transaction function returns. Only keys whose value changed are written.
package ledger

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// Instance keys in storage.NamespaceInstance.
const (
	KeyAdmin         = "admin"
	KeyName          = "name"
	KeySymbol        = "symbol"
	KeyDecimals      = "decimals"
	KeyTotalSupply   = "total_supply"
	KeyActionID      = "action_id"
	KeyRedemptionID  = "redemption_id"
	KeyUserCount     = "user_count"
	DefaultDecimals  = uint32(7)
	DefaultName      = "EcoPrado Token"
	DefaultSymbol    = "ECO"
	defaultSupplyRaw = 1_000_000
)

// InitialSupply is credited to the admin when the token ledger is initialized.
var InitialSupply = decimal.NewFromInt(defaultSupplyRaw)

// State is the ledger's singleton configuration and counters.
type State struct {
	Admin         id.Address
	Name          string
	Symbol        string
	Decimals      uint32
	TotalSupply   decimal.Decimal
	ActionSeq     uint32 // last assigned action id, 0 before the first report
	RedemptionSeq uint32 // last assigned redemption id
	UserCount     uint64

	loaded snapshot
}

type snapshot struct {
	admin         id.Address
	name          string
	symbol        string
	decimals      uint32
	totalSupply   decimal.Decimal
	actionSeq     uint32
	redemptionSeq uint32
	userCount     uint64
}

func (s *State) snapshot() snapshot {
	return snapshot{
		admin:         s.Admin,
		name:          s.Name,
		symbol:        s.Symbol,
		decimals:      s.Decimals,
		totalSupply:   s.TotalSupply,
		actionSeq:     s.ActionSeq,
		redemptionSeq: s.RedemptionSeq,
		userCount:     s.UserCount,
	}
}

// Load reads every instance key. Absent keys keep their zero value.
func Load(ctx context.Context, st storage.Store) (*State, error) {
	s := &State{TotalSupply: decimal.Zero}
	fields := []struct {
		key string
		dst any
	}{
		{KeyAdmin, &s.Admin},
		{KeyName, &s.Name},
		{KeySymbol, &s.Symbol},
		{KeyDecimals, &s.Decimals},
		{KeyTotalSupply, &s.TotalSupply},
		{KeyActionID, &s.ActionSeq},
		{KeyRedemptionID, &s.RedemptionSeq},
		{KeyUserCount, &s.UserCount},
	}
	for _, f := range fields {
		err := storage.GetJSON(ctx, st, storage.NamespaceInstance, f.key, f.dst)
		if err != nil && !storage.IsNotFound(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger state")
		}
	}
	s.loaded = s.snapshot()
	return s, nil
}

type instanceWrite struct {
	key string
	val any
}

// Commit writes the instance keys that changed since Load or the last Commit.
func (s *State) Commit(ctx context.Context, st storage.Store) error {
	prev := s.loaded
	var changed []instanceWrite
	if s.Admin != prev.admin {
		changed = append(changed, instanceWrite{KeyAdmin, s.Admin})
	}
	if s.Name != prev.name {
		changed = append(changed, instanceWrite{KeyName, s.Name})
	}
	if s.Symbol != prev.symbol {
		changed = append(changed, instanceWrite{KeySymbol, s.Symbol})
	}
	if s.Decimals != prev.decimals {
		changed = append(changed, instanceWrite{KeyDecimals, s.Decimals})
	}
	if !s.TotalSupply.Equal(prev.totalSupply) {
		changed = append(changed, instanceWrite{KeyTotalSupply, s.TotalSupply})
	}
	if s.ActionSeq != prev.actionSeq {
		changed = append(changed, instanceWrite{KeyActionID, s.ActionSeq})
	}
	if s.RedemptionSeq != prev.redemptionSeq {
		changed = append(changed, instanceWrite{KeyRedemptionID, s.RedemptionSeq})
	}
	if s.UserCount != prev.userCount {
		changed = append(changed, instanceWrite{KeyUserCount, s.UserCount})
	}
	for _, c := range changed {
		if err := storage.SetJSON(ctx, st, storage.NamespaceInstance, c.key, c.val); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit ledger state")
		}
	}
	s.loaded = s.snapshot()
	return nil
}

// Initialized reports whether the token ledger has an admin.
func (s *State) Initialized() bool {
	return !s.Admin.IsNil()
}

// RequireInitialized fails with CodeInvalidState before Initialize has run.
func (s *State) RequireInitialized() error {
	if !s.Initialized() {
		return dErrors.New(dErrors.CodeInvalidState, "token ledger is not initialized")
	}
	return nil
}

// Initialize sets the token metadata once. The caller credits the initial
// supply to the admin's balance in the same transaction.
func (s *State) Initialize(admin id.Address, name, symbol string) error {
	if s.Initialized() {
		return dErrors.New(dErrors.CodeConflict, "token ledger already initialized")
	}
	if admin.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "admin address is required")
	}
	if name == "" {
		name = DefaultName
	}
	if symbol == "" {
		symbol = DefaultSymbol
	}
	s.Admin = admin
	s.Name = name
	s.Symbol = symbol
	s.Decimals = DefaultDecimals
	s.TotalSupply = InitialSupply
	return nil
}

// NextActionID allocates the next action id. Ids start at 1 and are never reused.
func (s *State) NextActionID() (uint32, error) {
	if s.ActionSeq == math.MaxUint32 {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "action id space exhausted")
	}
	s.ActionSeq++
	return s.ActionSeq, nil
}

// NextRedemptionID allocates the next redemption id.
func (s *State) NextRedemptionID() (uint32, error) {
	if s.RedemptionSeq == math.MaxUint32 {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "redemption id space exhausted")
	}
	s.RedemptionSeq++
	return s.RedemptionSeq, nil
}

// AdjustSupply adds delta to TotalSupply, rejecting results outside the amount range.
func (s *State) AdjustSupply(delta decimal.Decimal) error {
	next := s.TotalSupply.Add(delta)
	if !id.IsValidAmount(next) || next.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "total supply out of range")
	}
	s.TotalSupply = next
	return nil
}
