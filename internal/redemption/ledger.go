// Package redemption keeps the append-only log of tokens exchanged at partner
// businesses.
package redemption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"ecoprado/internal/ledger"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/requestcontext"
)

// Record is one redemption. Amount is always positive.
type Record struct {
	ID        uint32          `json:"id"`
	User      id.Address      `json:"user"`
	Business  string          `json:"business"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Digest is the hex SHA-256 of the record's JSON encoding.
func (r *Record) Digest() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Ledger appends and reads redemption records.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append stores a record under the next redemption id. Records are never
// updated or removed.
func (l *Ledger) Append(ctx context.Context, st storage.Store, state *ledger.State, user id.Address, business string, amount decimal.Decimal) (*Record, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "redemption amount must be positive")
	}
	redemptionID, err := state.NextRedemptionID()
	if err != nil {
		return nil, err
	}
	record := &Record{
		ID:        redemptionID,
		User:      user,
		Business:  business,
		Amount:    amount,
		Timestamp: requestcontext.Now(ctx).UTC(),
	}
	if err := storage.SetJSON(ctx, st, storage.NamespaceRedemption, recordKey(redemptionID), record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save redemption")
	}
	return record, nil
}

// Get returns the record with redemptionID, or nil when absent.
func (l *Ledger) Get(ctx context.Context, st storage.Store, redemptionID uint32) (*Record, error) {
	var record Record
	err := storage.GetJSON(ctx, st, storage.NamespaceRedemption, recordKey(redemptionID), &record)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load redemption")
	}
	return &record, nil
}

// ListByUser scans ids from 1 up to the first gap, keeping the user's records.
func (l *Ledger) ListByUser(ctx context.Context, st storage.Store, user id.Address) ([]*Record, error) {
	var records []*Record
	for redemptionID := uint32(1); redemptionID != 0; redemptionID++ {
		record, err := l.Get(ctx, st, redemptionID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			break
		}
		if record.User == user {
			records = append(records, record)
		}
	}
	return records, nil
}

func recordKey(redemptionID uint32) string {
	return strconv.FormatUint(uint64(redemptionID), 10)
}
