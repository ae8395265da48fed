package authz

//go:generate mockgen -source=authorizer.go -destination=mocks/mocks.go -package=mocks Authorizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/requestcontext"
)

var jwtAuthorizer = NewJWTAuthorizer("test-signing-key", "test-issuer", "test-audience")

const alice = id.Address("alice")

func Test_SignerAuthorizer(t *testing.T) {
	a := NewSignerAuthorizer()

	t.Run("accepts a verified signer", func(t *testing.T) {
		ctx := requestcontext.WithSigners(context.Background(), "bob", alice)
		assert.NoError(t, a.RequireAuth(ctx, alice))
	})

	t.Run("rejects a missing signer", func(t *testing.T) {
		ctx := requestcontext.WithSigners(context.Background(), "bob")
		err := a.RequireAuth(ctx, alice)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects an empty address", func(t *testing.T) {
		err := a.RequireAuth(context.Background(), "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func Test_JWTAuthorizer_Issue(t *testing.T) {
	token, err := jwtAuthorizer.Issue(alice, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtAuthorizer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, alice.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_JWTAuthorizer_Validate(t *testing.T) {
	t.Run("invalid token", func(t *testing.T) {
		_, err := jwtAuthorizer.Validate("invalid-token-string")
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := jwtAuthorizer.Issue(alice, -time.Hour)
		require.NoError(t, err)
		_, err = jwtAuthorizer.Validate(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
	})

	t.Run("token from another key", func(t *testing.T) {
		other := NewJWTAuthorizer("other-key", "test-issuer", "test-audience")
		token, err := other.Issue(alice, time.Hour)
		require.NoError(t, err)
		_, err = jwtAuthorizer.Validate(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("token for another audience", func(t *testing.T) {
		other := NewJWTAuthorizer("test-signing-key", "test-issuer", "elsewhere")
		token, err := other.Issue(alice, time.Hour)
		require.NoError(t, err)
		_, err = jwtAuthorizer.Validate(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})
}

func Test_JWTAuthorizer_RequireAuth(t *testing.T) {
	aliceToken, err := jwtAuthorizer.Issue(alice, time.Hour)
	require.NoError(t, err)

	t.Run("accepts a credential for the address", func(t *testing.T) {
		ctx := requestcontext.WithCredentials(context.Background(), "garbage", aliceToken)
		assert.NoError(t, jwtAuthorizer.RequireAuth(ctx, alice))
	})

	t.Run("rejects a credential for a different address", func(t *testing.T) {
		ctx := requestcontext.WithCredentials(context.Background(), aliceToken)
		err := jwtAuthorizer.RequireAuth(ctx, "bob")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects an invocation without credentials", func(t *testing.T) {
		err := jwtAuthorizer.RequireAuth(context.Background(), alice)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func Test_AnyOf(t *testing.T) {
	a := AnyOf{NewSignerAuthorizer(), jwtAuthorizer}
	token, err := jwtAuthorizer.Issue(alice, time.Hour)
	require.NoError(t, err)

	assert.NoError(t, a.RequireAuth(requestcontext.WithSigners(context.Background(), alice), alice))
	assert.NoError(t, a.RequireAuth(requestcontext.WithCredentials(context.Background(), token), alice))

	err = a.RequireAuth(context.Background(), alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
