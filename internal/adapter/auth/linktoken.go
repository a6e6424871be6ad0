package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arturoeanton/godsplan/internal/port"
)

const linkAudience = "email-sign-in"

// linkClaims is the JWT payload of an email sign-in code.
type linkClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LinkTokens signs sign-in codes with HS256.
type LinkTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	nowF   func() time.Time
}

// NewLinkTokens returns a codec. ttl is the lifetime of issued codes.
func NewLinkTokens(secret, issuer string, ttl time.Duration) *LinkTokens {
	return &LinkTokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		nowF:   time.Now,
	}
}

// WithClock replaces the time source.
func (l *LinkTokens) WithClock(nowF func() time.Time) *LinkTokens {
	l.nowF = nowF
	return l
}

// Issue implements port.LinkTokenCodec.
func (l *LinkTokens) Issue(email string) (string, port.LinkClaims, error) {
	now := l.nowF()
	claims := linkClaims{
		Email: strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    l.issuer,
			Audience:  jwt.ClaimStrings{linkAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", port.LinkClaims{}, fmt.Errorf("sign link token: %w", err)
	}
	return signed, port.LinkClaims{
		ID:        claims.ID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify implements port.LinkTokenCodec. Expired tokens yield
// port.ErrLinkExpired; every other rejection wraps port.ErrLinkInvalid.
func (l *LinkTokens) Verify(token string) (*port.LinkClaims, error) {
	var claims linkClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(l.issuer),
		jwt.WithAudience(linkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.nowF),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, port.ErrLinkExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", port.ErrLinkInvalid, err)
	}
	if claims.ID == "" || claims.Email == "" {
		return nil, port.ErrLinkInvalid
	}
	return &port.LinkClaims{
		ID:        claims.ID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// WellFormed implements port.LinkTokenCodec. The signature is not checked.
func (l *LinkTokens) WellFormed(token string) bool {
	if token == "" {
		return false
	}
	var claims linkClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	return err == nil && claims.ID != "" && claims.Email != ""
}
