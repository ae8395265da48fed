// Package requestcontext provides transport-independent context accessors for
// invocation-scoped values.
//
// Callers (an HTTP adapter, a queue consumer, a test) set the values; the
// engine and its authorizers read them. Keeping this package free of transport
// dependencies lets services import only what they need.
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	signers := requestcontext.Signers(ctx)
//
// Usage in callers and tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithSigners(ctx, admin, user)
package requestcontext

import (
	"context"
	"time"

	id "ecoprado/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	signersKey     struct{}
	credentialsKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeySigners     = signersKey{}
	ContextKeyCredentials = credentialsKey{}
)

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Ledger time
// -----------------------------------------------------------------------------

// Now retrieves the invocation-scoped ledger time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific ledger time into a context.
// Useful for:
//   - Service unit tests that need deterministic timestamps
//   - Batch callers that want one timestamp per invocation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// -----------------------------------------------------------------------------
// Signatures
// -----------------------------------------------------------------------------

// Signers returns the addresses whose signatures the caller already verified
// for this invocation.
func Signers(ctx context.Context) []id.Address {
	if signers, ok := ctx.Value(ContextKeySigners).([]id.Address); ok {
		return signers
	}
	return nil
}

// WithSigners records verified signer addresses, appending to any already present.
func WithSigners(ctx context.Context, signers ...id.Address) context.Context {
	existing := Signers(ctx)
	merged := make([]id.Address, 0, len(existing)+len(signers))
	merged = append(merged, existing...)
	merged = append(merged, signers...)
	return context.WithValue(ctx, ContextKeySigners, merged)
}

// Credentials returns raw signed credentials (bearer tokens) attached to the invocation.
func Credentials(ctx context.Context) []string {
	if creds, ok := ctx.Value(ContextKeyCredentials).([]string); ok {
		return creds
	}
	return nil
}

// WithCredentials attaches raw signed credentials, appending to any already present.
func WithCredentials(ctx context.Context, credentials ...string) context.Context {
	existing := Credentials(ctx)
	merged := make([]string, 0, len(existing)+len(credentials))
	merged = append(merged, existing...)
	merged = append(merged, credentials...)
	return context.WithValue(ctx, ContextKeyCredentials, merged)
}
