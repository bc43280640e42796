package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two token flavors. The kind is embedded in the
// "knd" claim and each kind is signed with its own secret, so a refresh
// token can never be presented where an access token is expected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the claim set carried by every Reel token.
//
// Subject holds the user ID. ID ("jti") is a random UUID so that two tokens
// issued in the same instant for the same user still differ, which the
// rotation compare-and-swap depends on.
type Claims struct {
	Knd string `json:"knd"`
	jwt.RegisteredClaims
}

// Codec signs and verifies Reel tokens as HS256 JWTs.
//
// It is stateless and safe for concurrent use. Verification is purely
// cryptographic; whether a refresh token is still the live credential is the
// Store's concern.
type Codec struct {
	cfg Config
}

// NewCodec constructs a Codec. Returns ErrConfig on invalid configuration.
func NewCodec(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{cfg: cfg}, nil
}

func (c *Codec) secret(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return c.cfg.AccessSecret, c.cfg.AccessTTL, nil
	case KindRefresh:
		return c.cfg.RefreshSecret, c.cfg.RefreshTTL, nil
	default:
		return nil, 0, ErrMalformed
	}
}

// Issue signs a token of the given kind for userID, anchored at now.
func (c *Codec) Issue(kind Kind, userID string, now time.Time) (token string, exp time.Time, err error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, ErrMalformed
	}

	secret, ttl, err := c.secret(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	exp = now.Add(ttl)
	claims := Claims{
		Knd: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Verify parses and verifies a token of the given kind against now.
//
// Errors are normalized to the package sentinels: ErrExpired for lifetime
// failures, ErrSignatureInvalid for signature failures (including a token of
// the other kind, since kinds use distinct secrets), ErrMalformed for
// everything else.
func (c *Codec) Verify(kind Kind, tokenStr string, now time.Time) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	// Sanity bounds to avoid pathological inputs.
	if tokenStr == "" || len(tokenStr) > 4096 {
		return Claims{}, ErrMalformed
	}

	secret, _, err := c.secret(kind)
	if err != nil {
		return Claims{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.cfg.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrSignatureInvalid
		default:
			return Claims{}, ErrMalformed
		}
	}
	if !token.Valid {
		return Claims{}, ErrMalformed
	}

	if claims.Knd != string(kind) || claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrMalformed
	}

	return claims, nil
}
