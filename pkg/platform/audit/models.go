package audit

import (
	"context"
	"time"

	id "ecoprado/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory or financial significance.
	// Examples: account registration, verification, redemptions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: denied authorizations, rejected identity documents.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine ledger activity.
	// Examples: reported actions, mints, transfers.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted after a ledger operation commits. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	// UserID is the account or address the event is about.
	UserID id.UserID
	Action string
	// Amount is the decimal string of any token or reward amount involved.
	Amount string
	// Counterparty is the other side of a transfer or the redeeming business.
	Counterparty string
	// RecordID and Digest identify the stored action or redemption record.
	RecordID string
	Digest   string
	Decision string
	Reason   string
	// RequestID is the caller's correlation id.
	RequestID string
	// ActorID tracks who authorized the operation when different from UserID.
	ActorID string
}

type AuditEvent string

const (
	EventLedgerInitialized    AuditEvent = "ledger_initialized"
	EventUserRegistered       AuditEvent = "user_registered"
	EventUserVerified         AuditEvent = "user_verified"
	EventVerificationRejected AuditEvent = "verification_rejected"
	EventActionReported       AuditEvent = "action_reported"
	EventTokensMinted         AuditEvent = "tokens_minted"
	EventTokensBurned         AuditEvent = "tokens_burned"
	EventTokensTransferred    AuditEvent = "tokens_transferred"
	EventTokensRedeemed       AuditEvent = "tokens_redeemed"
	EventAuthorizationDenied  AuditEvent = "authorization_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLedgerInitialized: CategoryCompliance,
	EventUserRegistered:    CategoryCompliance,
	EventUserVerified:      CategoryCompliance,
	EventTokensRedeemed:    CategoryCompliance,

	EventVerificationRejected: CategorySecurity,
	EventAuthorizationDenied:  CategorySecurity,

	EventActionReported:    CategoryOperations,
	EventTokensMinted:      CategoryOperations,
	EventTokensBurned:      CategoryOperations,
	EventTokensTransferred: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink accepts events for persistence or forwarding.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
