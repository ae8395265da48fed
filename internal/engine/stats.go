package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// Stats summarises the ledger counters.
type Stats struct {
	RegisteredUsers  uint64          `json:"registered_users"`
	TotalActions     uint32          `json:"total_actions"`
	TotalRedemptions uint32          `json:"total_redemptions"`
	TotalSupply      decimal.Decimal `json:"total_supply"`
	Initialized      bool            `json:"initialized"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	var stats *Stats
	err := e.run(ctx, "stats", func(_ context.Context, t *txn) error {
		stats = &Stats{
			RegisteredUsers:  t.state.UserCount,
			TotalActions:     t.state.ActionSeq,
			TotalRedemptions: t.state.RedemptionSeq,
			TotalSupply:      t.state.TotalSupply,
			Initialized:      t.state.Initialized(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
