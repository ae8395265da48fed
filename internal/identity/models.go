package identity

import (
	"math"

	"github.com/shopspring/decimal"

	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// Role is the kind of participant an account belongs to.
type Role string

const (
	RoleCitizen  Role = "ciudadano"
	RoleFarmer   Role = "agricultor"
	RoleBusiness Role = "negocio"
)

// ParseRole accepts the stored role names and their English aliases. Aliases
// resolve to the stored constant.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCitizen, RoleFarmer, RoleBusiness:
		return r, nil
	case "citizen":
		return RoleCitizen, nil
	case "farmer":
		return RoleFarmer, nil
	case "business":
		return RoleBusiness, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "invalid role: "+s)
	}
}

// VerificationStatus tracks whether an account's government id was validated.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	// StatusPending is declared for compatibility; no operation assigns it.
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
)

// UserAccount is a registered participant and its running reward totals.
type UserAccount struct {
	ID                 id.UserID          `json:"id"`
	Name               string             `json:"name"`
	Role               Role               `json:"role"`
	Municipality       string             `json:"municipality"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Balance            decimal.Decimal    `json:"balance"`
	CO2Saved           decimal.Decimal    `json:"co2_saved"`
	TotalActions       uint32             `json:"total_actions"`
}

// NewUserAccount builds a fresh, unverified account with zeroed totals.
func NewUserAccount(userID id.UserID, name string, role Role, municipality string) *UserAccount {
	return &UserAccount{
		ID:                 userID,
		Name:               name,
		Role:               role,
		Municipality:       municipality,
		VerificationStatus: StatusUnverified,
		Balance:            decimal.Zero,
		CO2Saved:           decimal.Zero,
	}
}

// IsVerified reports whether the account passed document verification.
func (u *UserAccount) IsVerified() bool {
	return u.VerificationStatus == StatusVerified
}

// MarkVerified moves the account to verified. Repeating it is harmless.
func (u *UserAccount) MarkVerified() {
	u.VerificationStatus = StatusVerified
}

// ApplyReward adds an action's reward and CO2 to the running totals and counts
// the action. The account is left untouched when any total would overflow.
func (u *UserAccount) ApplyReward(reward, co2 decimal.Decimal) error {
	balance := u.Balance.Add(reward)
	saved := u.CO2Saved.Add(co2)
	if !id.IsValidAmount(balance) || !id.IsValidAmount(saved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "account totals out of range")
	}
	if u.TotalActions == math.MaxUint32 {
		return dErrors.New(dErrors.CodeInvariantViolation, "action count out of range")
	}
	u.Balance = balance
	u.CO2Saved = saved
	u.TotalActions++
	return nil
}
