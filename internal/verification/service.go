// Package verification validates government identity documents and marks the
// matching account as verified.
package verification

import (
	"context"
	"regexp"

	"ecoprado/internal/identity"
	"ecoprado/internal/storage"
	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
)

// Supported id types.
const (
	IDTypeCURP = "curp"
	IDTypeRFC  = "rfc"
)

var idFormats = map[string]*regexp.Regexp{
	IDTypeCURP: regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[A-Z0-9]{2}$`),
	IDTypeRFC:  regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[A-Z0-9]{3}$`),
}

// Request is a single verification submission. It is consumed once and never stored.
type Request struct {
	IDType         string            `json:"id_type"`
	IDNumber       string            `json:"id_number"`
	FullName       string            `json:"full_name"`
	Municipality   string            `json:"municipality"`
	UserType       string            `json:"user_type"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

// Validate explains why a request would be rejected. The error always carries
// CodeValidation.
func (r *Request) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if r.IDNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "id_number is required")
	}
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if r.Municipality == "" {
		return dErrors.New(dErrors.CodeValidation, "municipality is required")
	}
	format, ok := idFormats[r.IDType]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "unsupported id_type: "+r.IDType)
	}
	if !format.MatchString(r.IDNumber) {
		return dErrors.New(dErrors.CodeValidation, "id_number does not match "+r.IDType+" format")
	}
	return nil
}

// Service flips an account to verified when its document checks out.
type Service struct {
	registry *identity.Registry
}

func New(registry *identity.Registry) *Service {
	return &Service{registry: registry}
}

// Submit reports whether the request is valid. On success the account whose id
// equals the document number, if any, becomes verified. A rejected request is
// not an error; the error return is reserved for storage failures.
func (s *Service) Submit(ctx context.Context, st storage.Store, req *Request) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, nil
	}

	account, err := s.registry.Get(ctx, st, id.UserID(req.IDNumber))
	if err != nil {
		return false, err
	}
	if account == nil {
		return true, nil
	}
	account.MarkVerified()
	if err := s.registry.Update(ctx, st, account); err != nil {
		return false, err
	}
	return true, nil
}
