// Package sentinel defines the infrastructure errors storage backends return.
// Callers match them with errors.Is and translate them into coded domain
// errors; input validation never produces one of these.
package sentinel

import "errors"

var (
	// ErrNotFound means the key is absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent transaction changed data this one read.
	// The whole transaction was discarded and may be retried.
	ErrConflict = errors.New("conflict")
)
