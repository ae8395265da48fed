package storage

import (
	"context"
	"time"

	dErrors "ecoprado/pkg/domain-errors"
)

// DefaultTxTimeout is the maximum duration for a ledger transaction when the
// caller did not set a deadline.
const DefaultTxTimeout = 5 * time.Second

// BeginContext applies the transaction timeout and rejects already-cancelled
// contexts. Backends call it before acquiring locks or opening transactions.
func BeginContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// CheckContext reports a cancelled or expired context as a timeout.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}
