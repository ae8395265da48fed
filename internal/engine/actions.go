package engine

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ecoprado/internal/actions"
	audit "ecoprado/pkg/platform/audit"
)

// ReportAction records a completed eco action and credits the reporting user.
// An unknown user still gets a stored record but no credit.
func (e *Engine) ReportAction(ctx context.Context, userID, actionType, description, evidence string) (*actions.Record, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	var result *actions.ReportResult
	err = e.run(ctx, "report_action", func(ctx context.Context, t *txn) error {
		result, err = e.actions.Report(ctx, t.store, t.state, uid, actionType, description, evidence)
		if err != nil {
			return err
		}
		decision := "uncredited"
		if result.Credited {
			decision = "credited"
		}
		t.record(audit.Event{
			UserID:   uid,
			Action:   string(audit.EventActionReported),
			Amount:   result.Record.RewardAmount.String(),
			RecordID: strconv.FormatUint(uint64(result.Record.ID), 10),
			Digest:   result.Record.Digest(),
			Decision: decision,
			Reason:   actionType,
		})
		if result.Credited && e.rewardMode == actions.RewardModeToken {
			t.record(audit.Event{
				UserID: uid,
				Action: string(audit.EventTokensMinted),
				Amount: result.Record.RewardAmount.String(),
				Reason: "eco action reward",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.IncrementActionReported(actionType)
	if result.Credited && e.rewardMode == actions.RewardModeToken {
		e.metrics.AddTokensMinted(result.Record.RewardAmount.InexactFloat64())
	}
	return result.Record, nil
}

// GetAction returns the action record, or nil when actionID was never issued.
func (e *Engine) GetAction(ctx context.Context, actionID uint32) (*actions.Record, error) {
	var record *actions.Record
	err := e.run(ctx, "get_action", func(ctx context.Context, t *txn) error {
		var err error
		record, err = e.actions.Get(ctx, t.store, actionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListUserActions returns the user's actions in id order.
func (e *Engine) ListUserActions(ctx context.Context, userID string) ([]*actions.Record, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	var records []*actions.Record
	err = e.run(ctx, "list_user_actions", func(ctx context.Context, t *txn) error {
		records, err = e.actions.ListByUser(ctx, t.store, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// EstimateCO2 converts activity figures into kilograms of CO2 and a suggested
// reward. It touches no state.
func (e *Engine) EstimateCO2(ctx context.Context, transportKm, energyKWh, wasteKg decimal.Decimal) (*actions.Estimate, error) {
	_, span := e.tracer.Start(ctx, "ledger.estimate_co2", trace.WithAttributes(attribute.String("ledger.operation", "estimate_co2")))
	defer span.End()

	estimate, err := actions.EstimateCO2(transportKm, energyKWh, wasteKg)
	if err != nil {
		span.RecordError(err)
		e.metrics.IncrementRejected("estimate_co2", "validation_error")
		return nil, err
	}
	return estimate, nil
}
