package actions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	id "ecoprado/pkg/domain"
)

// Status of a reported action. Report always stores StatusCompleted.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Record is one entry of the append-only action log.
type Record struct {
	ID           uint32          `json:"id"`
	UserID       id.UserID       `json:"user_id"`
	ActionType   string          `json:"action_type"`
	Description  string          `json:"description"`
	Evidence     string          `json:"evidence"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	CO2Saved     decimal.Decimal `json:"co2_saved"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Digest is the hex SHA-256 of the record's JSON encoding. It serves as a
// receipt reference that changes if any stored field changes.
func (r *Record) Digest() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
