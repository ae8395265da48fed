// Package authz answers whether the current invocation carries a valid
// authorization from a given address.
//
// Protected ledger operations call RequireAuth before any mutation. A failure
// is fatal for the invocation and always carries CodeUnauthorized.
package authz

import (
	"context"
	"slices"

	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/requestcontext"
)

type Authorizer interface {
	RequireAuth(ctx context.Context, addr id.Address) error
}

// SignerAuthorizer trusts the signer set a caller already verified and placed
// on the context with requestcontext.WithSigners.
type SignerAuthorizer struct{}

func NewSignerAuthorizer() *SignerAuthorizer {
	return &SignerAuthorizer{}
}

func (a *SignerAuthorizer) RequireAuth(ctx context.Context, addr id.Address) error {
	if addr.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authorization address is required")
	}
	if slices.Contains(requestcontext.Signers(ctx), addr) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "missing authorization for "+addr.String())
}

// AnyOf accepts the invocation when at least one authorizer does.
type AnyOf []Authorizer

func (a AnyOf) RequireAuth(ctx context.Context, addr id.Address) error {
	for _, authorizer := range a {
		if err := authorizer.RequireAuth(ctx, addr); err == nil {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "missing authorization for "+addr.String())
}
