package port

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/arturoeanton/godsplan/internal/domain"
)

// AuthProvider abstracts a federated OAuth2 identity provider.
// Implementations handle the consent URL, token exchange and profile
// retrieval for a specific provider (Google, GitHub, etc.).
type AuthProvider interface {
	// ProviderName returns the name of this provider (e.g. "google", "github").
	ProviderName() string

	// AuthURL returns the consent screen URL. verifier is the PKCE code verifier
	// whose S256 challenge is attached to the request.
	AuthURL(state, verifier string) string

	// ExchangeCode exchanges an authorization code for a token.
	ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// GetUserProfile fetches the authenticated user's profile from the provider.
	GetUserProfile(ctx context.Context, token *oauth2.Token) (*domain.User, error)
}

// AuthProviderRegistry holds multiple AuthProvider implementations keyed by name.
type AuthProviderRegistry map[string]AuthProvider

// UserDirectory maps provider accounts onto canonical users.
type UserDirectory interface {
	UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error)
}

// LinkClaims are the verified contents of an email sign-in link token.
type LinkClaims struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// LinkTokenCodec issues and verifies the one-time code embedded in sign-in links.
type LinkTokenCodec interface {
	Issue(email string) (token string, claims LinkClaims, err error)
	Verify(token string) (*LinkClaims, error)
	// WellFormed checks the token's structure without verifying its signature.
	WellFormed(token string) bool
}

// LinkLedger records redeemed link tokens so each is usable once.
type LinkLedger interface {
	// Consume marks id as used. It returns false when id was already consumed.
	Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error)
}
