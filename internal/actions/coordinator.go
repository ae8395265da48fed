package actions

import (
	"context"

	"github.com/shopspring/decimal"

	"ecoprado/internal/identity"
	"ecoprado/internal/ledger"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// RewardMode selects where an action's reward lands.
type RewardMode string

const (
	// RewardModeAccount credits only the account's balance field.
	RewardModeAccount RewardMode = "account"
	// RewardModeToken also mints the reward on the token ledger.
	RewardModeToken RewardMode = "token"
)

// ParseRewardMode accepts "account" and "token"; empty means account.
func ParseRewardMode(s string) (RewardMode, error) {
	switch RewardMode(s) {
	case "", RewardModeAccount:
		return RewardModeAccount, nil
	case RewardModeToken:
		return RewardModeToken, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "invalid reward mode: "+s)
	}
}

// Minter credits newly created tokens to an address.
type Minter interface {
	Mint(ctx context.Context, st storage.Store, state *ledger.State, to id.Address, amount decimal.Decimal) (bool, error)
}

// Coordinator applies an action's reward to the reporting user.
type Coordinator struct {
	registry *identity.Registry
	mode     RewardMode
	minter   Minter
}

type CoordinatorOption func(*Coordinator)

// WithTokenRewards switches the coordinator to RewardModeToken.
func WithTokenRewards(minter Minter) CoordinatorOption {
	return func(c *Coordinator) {
		c.mode = RewardModeToken
		c.minter = minter
	}
}

func NewCoordinator(registry *identity.Registry, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{registry: registry, mode: RewardModeAccount}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the active reward mode.
func (c *Coordinator) Mode() RewardMode {
	return c.mode
}

// Credit adds reward and co2 to the user's totals and counts one action. An
// unknown user is skipped without error. In token mode the reward is also
// minted to the user's address; a refused mint fails the whole credit.
func (c *Coordinator) Credit(ctx context.Context, st storage.Store, state *ledger.State, userID id.UserID, reward, co2 decimal.Decimal) (bool, error) {
	account, err := c.registry.Get(ctx, st, userID)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, nil
	}
	if err := account.ApplyReward(reward, co2); err != nil {
		return false, err
	}
	if err := c.registry.Update(ctx, st, account); err != nil {
		return false, err
	}

	if c.mode != RewardModeToken {
		return true, nil
	}
	minted, err := c.minter.Mint(ctx, st, state, userID.Address(), reward)
	if err != nil {
		return false, err
	}
	if !minted {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "reward mint was refused")
	}
	return true, nil
}
