package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "ecoprado/pkg/domain-errors"
)

// maxIdentifierLength bounds public identifiers and addresses at trust boundaries.
const maxIdentifierLength = 128

// UserID is the public identifier a user registers under (typically a wallet
// public key, or a government id number for verified citizens).
type UserID string

// Address identifies a token holder. User ids double as addresses when
// rewards are paid in tokens.
type Address string

// ParseUserID validates a public identifier received from a caller.
//
// Errors: CodeInvalidInput when the value is empty, too long, not UTF-8 or
// contains control or whitespace characters.
func ParseUserID(s string) (UserID, error) {
	if err := validateIdentifier(s, "user id"); err != nil {
		return "", err
	}
	return UserID(s), nil
}

// ParseAddress validates a token holder address received from a caller.
func ParseAddress(s string) (Address, error) {
	if err := validateIdentifier(s, "address"); err != nil {
		return "", err
	}
	return Address(s), nil
}

func validateIdentifier(s, what string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	if len(s) > maxIdentifierLength {
		return dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidInput, what+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '\u200b' {
			return dErrors.New(dErrors.CodeInvalidInput, what+" contains invalid characters")
		}
	}
	return nil
}

func (id UserID) String() string { return string(id) }

// IsNil reports whether the id is unset.
func (id UserID) IsNil() bool { return id == "" }

// Address returns the token address owned by this user.
func (id UserID) Address() Address { return Address(id) }

func (a Address) String() string { return string(a) }

// IsNil reports whether the address is unset.
func (a Address) IsNil() bool { return a == "" }
