package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "ecoprado/pkg/domain"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}

func TestSignersAccumulate(t *testing.T) {
	ctx := WithSigners(context.Background(), id.Address("admin"))
	ctx = WithSigners(ctx, id.Address("alice"))

	assert.Equal(t, []id.Address{"admin", "alice"}, Signers(ctx))
	assert.Empty(t, Signers(context.Background()))
}

func TestCredentialsAccumulate(t *testing.T) {
	ctx := WithCredentials(context.Background(), "token-a")
	ctx = WithCredentials(ctx, "token-b")

	assert.Equal(t, []string{"token-a", "token-b"}, Credentials(ctx))
}
