package testutil

import (
	"context"
	"time"

	id "ecoprado/pkg/domain"
	"ecoprado/pkg/requestcontext"
)

// LedgerTime is the fixed ledger timestamp used across package tests.
var LedgerTime = time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)

// SignedBy returns a context whose invocation carries verified signatures from
// addrs, as a signature-checking caller would after validating them.
func SignedBy(ctx context.Context, addrs ...id.Address) context.Context {
	return requestcontext.WithSigners(ctx, addrs...)
}

// AtLedgerTime pins requestcontext.Now to LedgerTime.
func AtLedgerTime(ctx context.Context) context.Context {
	return requestcontext.WithTime(ctx, LedgerTime)
}
