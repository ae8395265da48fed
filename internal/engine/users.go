package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"ecoprado/internal/identity"
	"ecoprado/internal/verification"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	audit "ecoprado/pkg/platform/audit"
)

// Initialize sets up the token once. The admin receives the initial supply and
// must have signed the call.
func (e *Engine) Initialize(ctx context.Context, admin, name, symbol string) error {
	adminAddr, err := parseAddress(admin)
	if err != nil {
		return err
	}
	return e.run(ctx, "initialize", func(ctx context.Context, t *txn) error {
		if err := e.tokens.Initialize(ctx, t.store, t.state, adminAddr, name, symbol); err != nil {
			return err
		}
		t.record(audit.Event{
			UserID:   id.UserID(adminAddr),
			Action:   string(audit.EventLedgerInitialized),
			Amount:   t.state.TotalSupply.String(),
			Decision: t.state.Symbol,
		})
		return nil
	})
}

// RegisterUser stores a fresh account for userID. Under the default policy a
// known id is overwritten and its totals are reset.
func (e *Engine) RegisterUser(ctx context.Context, userID, name, role, municipality string) (*identity.UserAccount, error) {
	var (
		account *identity.UserAccount
		created bool
	)
	err := e.run(ctx, "register_user", func(ctx context.Context, t *txn) error {
		before := t.state.UserCount
		var err error
		account, err = e.registry.Register(ctx, t.store, t.state, userID, name, role, municipality)
		if err != nil {
			return err
		}
		created = t.state.UserCount > before
		decision := "replaced"
		if created {
			decision = "created"
		}
		t.record(audit.Event{
			UserID:   account.ID,
			Action:   string(audit.EventUserRegistered),
			Decision: decision,
			Reason:   string(account.Role),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		e.metrics.IncrementUsersRegistered()
	}
	return account, nil
}

// GetUser returns the account, or nil when userID is not registered.
func (e *Engine) GetUser(ctx context.Context, userID string) (*identity.UserAccount, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	var account *identity.UserAccount
	err = e.run(ctx, "get_user", func(ctx context.Context, t *txn) error {
		account, err = e.registry.Get(ctx, t.store, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// SubmitVerification validates an identity document. It returns false, without
// an error, for a malformed request.
func (e *Engine) SubmitVerification(ctx context.Context, req *verification.Request) (bool, error) {
	var accepted bool
	err := e.run(ctx, "submit_verification", func(ctx context.Context, t *txn) error {
		var err error
		accepted, err = e.verifier.Submit(ctx, t.store, req)
		if err != nil {
			return err
		}
		if accepted {
			account, err := e.registry.Get(ctx, t.store, id.UserID(req.IDNumber))
			if err != nil {
				return err
			}
			event := audit.Event{
				Action:   string(audit.EventUserVerified),
				Decision: "verified",
				Reason:   req.IDType,
			}
			if account != nil {
				event.UserID = account.ID
			} else {
				// A valid document with no matching account is not a user.
				event.Decision = "account_absent"
				event.Digest = documentDigest(req.IDNumber)
			}
			t.record(event)
			return nil
		}
		event := audit.Event{
			Action:   string(audit.EventVerificationRejected),
			Decision: "rejected",
			Reason:   req.Validate().Error(),
		}
		if req != nil {
			event.Digest = documentDigest(req.IDNumber)
		}
		t.record(event)
		return nil
	})
	if err != nil {
		return false, err
	}
	outcome := "rejected"
	if accepted {
		outcome = "verified"
	}
	e.metrics.IncrementVerification(outcome)
	return accepted, nil
}

// Ranking returns the registered candidate accounts in municipality.
func (e *Engine) Ranking(ctx context.Context, municipality string) ([]*identity.UserAccount, error) {
	var users []*identity.UserAccount
	err := e.run(ctx, "ranking", func(ctx context.Context, t *txn) error {
		var err error
		users, err = e.registry.Ranking(ctx, t.store, municipality)
		return err
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// documentDigest keeps document numbers that name no account out of the audit
// trail.
func documentDigest(documentNumber string) string {
	sum := sha256.Sum256([]byte(documentNumber))
	return hex.EncodeToString(sum[:])
}

func parseUserID(s string) (id.UserID, error) {
	uid, err := id.ParseUserID(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid user id")
	}
	return uid, nil
}

func parseAddress(s string) (id.Address, error) {
	addr, err := id.ParseAddress(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid address")
	}
	return addr, nil
}
