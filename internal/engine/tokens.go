package engine

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"ecoprado/internal/redemption"
	"ecoprado/internal/token"
	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
)

// Metadata returns the token description. It fails before Initialize.
func (e *Engine) Metadata(ctx context.Context) (*token.Metadata, error) {
	var meta *token.Metadata
	err := e.run(ctx, "metadata", func(_ context.Context, t *txn) error {
		var err error
		meta, err = e.tokens.Metadata(t.state)
		return err
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (e *Engine) Name(ctx context.Context) (string, error) {
	meta, err := e.Metadata(ctx)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (e *Engine) Symbol(ctx context.Context) (string, error) {
	meta, err := e.Metadata(ctx)
	if err != nil {
		return "", err
	}
	return meta.Symbol, nil
}

func (e *Engine) Decimals(ctx context.Context) (uint32, error) {
	meta, err := e.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

func (e *Engine) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	meta, err := e.Metadata(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return meta.TotalSupply, nil
}

// BalanceOf returns the token balance of addr. Unknown addresses hold zero.
func (e *Engine) BalanceOf(ctx context.Context, addr string) (decimal.Decimal, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	err = e.run(ctx, "balance_of", func(ctx context.Context, t *txn) error {
		balance, err = e.tokens.BalanceOf(ctx, t.store, a)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Transfer moves amount between addresses. from must have signed.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (bool, error) {
	fromAddr, err := parseAddress(from)
	if err != nil {
		return false, err
	}
	toAddr, err := parseAddress(to)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.run(ctx, "transfer", func(ctx context.Context, t *txn) error {
		ok, err = e.tokens.Transfer(ctx, t.store, t.state, fromAddr, toAddr, amount)
		if err != nil || !ok {
			return err
		}
		t.record(audit.Event{
			UserID:       id.UserID(fromAddr),
			Action:       string(audit.EventTokensTransferred),
			Amount:       amount.String(),
			Counterparty: toAddr.String(),
			ActorID:      fromAddr.String(),
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ok {
		e.rejected(ctx, "transfer", "insufficient_or_invalid_amount")
	}
	return ok, nil
}

// Mint creates tokens for to. Only the admin may mint.
func (e *Engine) Mint(ctx context.Context, to string, amount decimal.Decimal) (bool, error) {
	toAddr, err := parseAddress(to)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.run(ctx, "mint", func(ctx context.Context, t *txn) error {
		ok, err = e.tokens.Mint(ctx, t.store, t.state, toAddr, amount)
		if err != nil || !ok {
			return err
		}
		t.record(audit.Event{
			UserID:  id.UserID(toAddr),
			Action:  string(audit.EventTokensMinted),
			Amount:  amount.String(),
			ActorID: t.state.Admin.String(),
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ok {
		e.rejected(ctx, "mint", "invalid_amount")
		return false, nil
	}
	e.metrics.AddTokensMinted(amount.InexactFloat64())
	return true, nil
}

// Burn destroys tokens held by from. from must have signed.
func (e *Engine) Burn(ctx context.Context, from string, amount decimal.Decimal) (bool, error) {
	fromAddr, err := parseAddress(from)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.run(ctx, "burn", func(ctx context.Context, t *txn) error {
		ok, err = e.tokens.Burn(ctx, t.store, t.state, fromAddr, amount)
		if err != nil || !ok {
			return err
		}
		t.record(audit.Event{
			UserID: id.UserID(fromAddr),
			Action: string(audit.EventTokensBurned),
			Amount: amount.String(),
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ok {
		e.rejected(ctx, "burn", "insufficient_or_invalid_amount")
		return false, nil
	}
	e.metrics.AddTokensBurned(amount.InexactFloat64())
	return true, nil
}

// RewardEcoAction mints the fixed reward for actionType to user and returns
// the amount minted. Only the admin may reward.
func (e *Engine) RewardEcoAction(ctx context.Context, user, actionType string) (decimal.Decimal, error) {
	userAddr, err := parseAddress(user)
	if err != nil {
		return decimal.Zero, err
	}
	minted := decimal.Zero
	err = e.run(ctx, "reward_eco_action", func(ctx context.Context, t *txn) error {
		minted, err = e.tokens.RewardEcoAction(ctx, t.store, t.state, userAddr, actionType)
		if err != nil || minted.IsZero() {
			return err
		}
		t.record(audit.Event{
			UserID:  id.UserID(userAddr),
			Action:  string(audit.EventTokensMinted),
			Amount:  minted.String(),
			Reason:  actionType,
			ActorID: t.state.Admin.String(),
		})
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	if minted.IsZero() {
		e.rejected(ctx, "reward_eco_action", "mint_refused")
		return minted, nil
	}
	e.metrics.AddTokensMinted(minted.InexactFloat64())
	return minted, nil
}

// RedeemTokens burns amount of user's tokens against a business and logs the
// redemption. user must have signed.
func (e *Engine) RedeemTokens(ctx context.Context, user string, amount decimal.Decimal, business string) (bool, error) {
	userAddr, err := parseAddress(user)
	if err != nil {
		return false, err
	}
	var record *redemption.Record
	err = e.run(ctx, "redeem_tokens", func(ctx context.Context, t *txn) error {
		record, err = e.tokens.RedeemTokens(ctx, t.store, t.state, userAddr, amount, business)
		if err != nil || record == nil {
			return err
		}
		t.record(audit.Event{
			UserID:       id.UserID(userAddr),
			Action:       string(audit.EventTokensRedeemed),
			Amount:       amount.String(),
			Counterparty: business,
			RecordID:     strconv.FormatUint(uint64(record.ID), 10),
			Digest:       record.Digest(),
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	if record == nil {
		e.rejected(ctx, "redeem_tokens", "insufficient_or_invalid_amount")
		return false, nil
	}
	e.metrics.IncrementRedemptions()
	e.metrics.AddTokensBurned(amount.InexactFloat64())
	return true, nil
}

// GetRedemption returns the redemption record, or nil when never issued.
func (e *Engine) GetRedemption(ctx context.Context, redemptionID uint32) (*redemption.Record, error) {
	var record *redemption.Record
	err := e.run(ctx, "get_redemption", func(ctx context.Context, t *txn) error {
		var err error
		record, err = e.redemptions.Get(ctx, t.store, redemptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListUserRedemptions returns the user's redemptions in id order.
func (e *Engine) ListUserRedemptions(ctx context.Context, user string) ([]*redemption.Record, error) {
	userAddr, err := parseAddress(user)
	if err != nil {
		return nil, err
	}
	var records []*redemption.Record
	err = e.run(ctx, "list_user_redemptions", func(ctx context.Context, t *txn) error {
		records, err = e.redemptions.ListByUser(ctx, t.store, userAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
