package patgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired   = errors.New("access token expired")
	ErrTokenMalformed = errors.New("access token malformed")
	ErrTokenSignature = errors.New("access token signature invalid")
)

// AccessTokenClaims are the claims carried by a minted gateway access
// token. PATID records the personal access token the credential was
// exchanged from, for audit correlation.
type AccessTokenClaims struct {
	Scopes []string `json:"scopes"`
	PATID  string   `json:"pat_id"`
	jwt.RegisteredClaims
}

// AccessTokenCodec mints and verifies the short-lived gateway access
// tokens. Tokens are HS256-signed JWTs; validity is determined purely by
// signature and expiry, nothing is stored server-side.
type AccessTokenCodec struct {
	key    []byte
	issuer string
	skew   time.Duration
}

// NewAccessTokenCodec creates a codec with the given signing key,
// issuer, and clock-skew allowance applied during verification.
func NewAccessTokenCodec(key []byte, issuer string, skew time.Duration) *AccessTokenCodec {
	return &AccessTokenCodec{
		key:    key,
		issuer: issuer,
		skew:   skew,
	}
}

// Mint produces a signed access token asserting subject, scopes, and the
// originating PAT id, expiring after ttl.
func (c *AccessTokenCodec) Mint(subject string, scopes []string, patID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		Scopes: scopes,
		PATID:  patID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates an access token string. It performs no
// I/O. Expiry is checked with the configured skew allowance.
func (c *AccessTokenCodec) Verify(raw string) (*AccessTokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.skew),
	)

	claims := &AccessTokenClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return c.key, nil
	})

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	default:
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
}
