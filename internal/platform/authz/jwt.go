package authz

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "ecoprado/pkg/domain"
	dErrors "ecoprado/pkg/domain-errors"
	"ecoprado/pkg/requestcontext"
)

// Claims is a signed statement that the holder acts for Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuthorizer accepts an address when the invocation carries an HS256 token
// whose subject is that address.
type JWTAuthorizer struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTAuthorizer(signingKey string, issuer string, audience string) *JWTAuthorizer {
	return &JWTAuthorizer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue signs a credential for addr valid for expiresIn.
func (a *JWTAuthorizer) Issue(addr id.Address, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Audience:  []string{a.audience},
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses and verifies a credential.
func (a *JWTAuthorizer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.signingKey, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithAudience(a.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (a *JWTAuthorizer) RequireAuth(ctx context.Context, addr id.Address) error {
	if addr.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authorization address is required")
	}
	for _, credential := range requestcontext.Credentials(ctx) {
		claims, err := a.Validate(credential)
		if err != nil {
			continue
		}
		if claims.Subject == addr.String() {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "missing authorization for "+addr.String())
}
