// Package actions keeps the append-only log of reported ecological actions and
// credits their rewards to the reporting user.
package actions

import (
	"context"
	"strconv"

	"ecoprado/internal/ledger"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/requestcontext"
)

// Ledger appends action records and hands their rewards to a Coordinator.
type Ledger struct {
	coordinator *Coordinator
}

func NewLedger(coordinator *Coordinator) *Ledger {
	return &Ledger{coordinator: coordinator}
}

// ReportResult is the stored record and whether a known user was credited.
type ReportResult struct {
	Record   *Record
	Credited bool
}

// Report stores a completed action under the next sequential id and credits the
// user. The record is stored even when the user is not registered.
func (l *Ledger) Report(ctx context.Context, st storage.Store, state *ledger.State, userID id.UserID, actionType, description, evidence string) (*ReportResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	actionID, err := state.NextActionID()
	if err != nil {
		return nil, err
	}
	reward := RewardFor(actionType)
	record := &Record{
		ID:           actionID,
		UserID:       userID,
		ActionType:   actionType,
		Description:  description,
		Evidence:     evidence,
		RewardAmount: reward.Tokens,
		CO2Saved:     reward.CO2Saved,
		Status:       StatusCompleted,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	if err := storage.SetJSON(ctx, st, storage.NamespaceAction, recordKey(actionID), record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save action")
	}

	credited, err := l.coordinator.Credit(ctx, st, state, userID, reward.Tokens, reward.CO2Saved)
	if err != nil {
		return nil, err
	}
	return &ReportResult{Record: record, Credited: credited}, nil
}

// Get returns the record with actionID, or nil when absent.
func (l *Ledger) Get(ctx context.Context, st storage.Store, actionID uint32) (*Record, error) {
	var record Record
	err := storage.GetJSON(ctx, st, storage.NamespaceAction, recordKey(actionID), &record)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load action")
	}
	return &record, nil
}

// ListByUser walks ids from 1 and stops at the first id with no record, so it
// only sees actions stored before any gap. It is not a pagination mechanism.
func (l *Ledger) ListByUser(ctx context.Context, st storage.Store, userID id.UserID) ([]*Record, error) {
	var records []*Record
	for actionID := uint32(1); actionID != 0; actionID++ {
		record, err := l.Get(ctx, st, actionID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			break
		}
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	return records, nil
}

func recordKey(actionID uint32) string {
	return strconv.FormatUint(uint64(actionID), 10)
}
