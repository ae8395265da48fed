// Package token implements fungible-token accounting: per-address balances and
// a total supply that always equals their sum.
package token

import (
	"context"

	"github.com/shopspring/decimal"

	"ecoprado/internal/ledger"
	"ecoprado/internal/platform/authz"
	"ecoprado/internal/redemption"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// Metadata describes the token.
type Metadata struct {
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    uint32          `json:"decimals"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Admin       id.Address      `json:"admin"`
}

// Ledger moves balances. Every mutating method authorizes before reading or
// writing anything, and a false result means nothing was written.
type Ledger struct {
	auth        authz.Authorizer
	redemptions *redemption.Ledger
}

func NewLedger(auth authz.Authorizer, redemptions *redemption.Ledger) *Ledger {
	return &Ledger{auth: auth, redemptions: redemptions}
}

// Initialize records the admin and metadata and credits the initial supply to
// the admin, so supply and balances agree from the start.
func (l *Ledger) Initialize(ctx context.Context, st storage.Store, state *ledger.State, admin id.Address, name, symbol string) error {
	if err := l.auth.RequireAuth(ctx, admin); err != nil {
		return err
	}
	if err := state.Initialize(admin, name, symbol); err != nil {
		return err
	}
	return l.setBalance(ctx, st, admin, state.TotalSupply)
}

// Metadata returns name, symbol, decimals, and supply.
func (l *Ledger) Metadata(state *ledger.State) (*Metadata, error) {
	if err := state.RequireInitialized(); err != nil {
		return nil, err
	}
	return &Metadata{
		Name:        state.Name,
		Symbol:      state.Symbol,
		Decimals:    state.Decimals,
		TotalSupply: state.TotalSupply,
		Admin:       state.Admin,
	}, nil
}

// BalanceOf returns the address's balance. Unknown addresses hold zero.
func (l *Ledger) BalanceOf(ctx context.Context, st storage.Store, addr id.Address) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := storage.GetJSON(ctx, st, storage.NamespaceBalance, addr.String(), &balance)
	if err != nil {
		if storage.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return balance, nil
}

func (l *Ledger) setBalance(ctx context.Context, st storage.Store, addr id.Address, balance decimal.Decimal) error {
	if err := storage.SetJSON(ctx, st, storage.NamespaceBalance, addr.String(), balance); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save balance")
	}
	return nil
}

// Transfer moves amount from one address to another. It returns false for a
// negative amount or an insufficient balance. A transfer to self is a no-op.
func (l *Ledger) Transfer(ctx context.Context, st storage.Store, state *ledger.State, from, to id.Address, amount decimal.Decimal) (bool, error) {
	if err := l.auth.RequireAuth(ctx, from); err != nil {
		return false, err
	}
	if err := state.RequireInitialized(); err != nil {
		return false, err
	}
	if amount.IsNegative() || !id.IsValidAmount(amount) {
		return false, nil
	}
	fromBalance, err := l.BalanceOf(ctx, st, from)
	if err != nil {
		return false, err
	}
	if fromBalance.LessThan(amount) {
		return false, nil
	}
	if from == to {
		return true, nil
	}
	toBalance, err := l.BalanceOf(ctx, st, to)
	if err != nil {
		return false, err
	}
	credited := toBalance.Add(amount)
	if !id.IsValidAmount(credited) {
		return false, nil
	}
	if err := l.setBalance(ctx, st, from, fromBalance.Sub(amount)); err != nil {
		return false, err
	}
	if err := l.setBalance(ctx, st, to, credited); err != nil {
		return false, err
	}
	return true, nil
}

// Mint creates amount new tokens for to. Only the admin may mint.
func (l *Ledger) Mint(ctx context.Context, st storage.Store, state *ledger.State, to id.Address, amount decimal.Decimal) (bool, error) {
	if err := state.RequireInitialized(); err != nil {
		return false, err
	}
	if err := l.auth.RequireAuth(ctx, state.Admin); err != nil {
		return false, err
	}
	if amount.IsNegative() || !id.IsValidAmount(amount) {
		return false, nil
	}
	balance, err := l.BalanceOf(ctx, st, to)
	if err != nil {
		return false, err
	}
	credited := balance.Add(amount)
	supply := state.TotalSupply.Add(amount)
	if !id.IsValidAmount(credited) || !id.IsValidAmount(supply) {
		return false, nil
	}
	if err := l.setBalance(ctx, st, to, credited); err != nil {
		return false, err
	}
	if err := state.AdjustSupply(amount); err != nil {
		return false, err
	}
	return true, nil
}

// Burn destroys amount of from's tokens.
func (l *Ledger) Burn(ctx context.Context, st storage.Store, state *ledger.State, from id.Address, amount decimal.Decimal) (bool, error) {
	if err := l.auth.RequireAuth(ctx, from); err != nil {
		return false, err
	}
	if err := state.RequireInitialized(); err != nil {
		return false, err
	}
	if amount.IsNegative() || !id.IsValidAmount(amount) {
		return false, nil
	}
	balance, err := l.BalanceOf(ctx, st, from)
	if err != nil {
		return false, err
	}
	if balance.LessThan(amount) {
		return false, nil
	}
	if err := l.setBalance(ctx, st, from, balance.Sub(amount)); err != nil {
		return false, err
	}
	if err := state.AdjustSupply(amount.Neg()); err != nil {
		return false, err
	}
	return true, nil
}

// RewardEcoAction mints the table reward for actionType to user and returns
// the minted amount, or zero when the mint was refused.
func (l *Ledger) RewardEcoAction(ctx context.Context, st storage.Store, state *ledger.State, user id.Address, actionType string) (decimal.Decimal, error) {
	if err := state.RequireInitialized(); err != nil {
		return decimal.Zero, err
	}
	if err := l.auth.RequireAuth(ctx, state.Admin); err != nil {
		return decimal.Zero, err
	}
	amount := EcoReward(actionType)
	minted, err := l.Mint(ctx, st, state, user, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !minted {
		return decimal.Zero, nil
	}
	return amount, nil
}

// RedeemTokens burns amount of user's tokens and logs the redemption at
// business. It returns nil, with nothing written, when amount is not positive
// or exceeds the balance.
func (l *Ledger) RedeemTokens(ctx context.Context, st storage.Store, state *ledger.State, user id.Address, amount decimal.Decimal, business string) (*redemption.Record, error) {
	if err := l.auth.RequireAuth(ctx, user); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, nil
	}
	burned, err := l.Burn(ctx, st, state, user, amount)
	if err != nil || !burned {
		return nil, err
	}
	return l.redemptions.Append(ctx, st, state, user, business, amount)
}
