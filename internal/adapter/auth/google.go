package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/arturoeanton/godsplan/internal/domain"
)

const googleProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider implements port.AuthProvider for Google OAuth2.
type GoogleProvider struct {
	oauth      *oauth2.Config
	profileURL string
}

// NewGoogleProvider creates a new Google OAuth2 provider.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...Option) *GoogleProvider {
	o := applyOptions(google.Endpoint, googleProfileURL, "", opts)
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     o.endpoint,
		},
		profileURL: o.profileURL,
	}
}

// ProviderName returns "google".
func (g *GoogleProvider) ProviderName() string {
	return domain.ProviderGoogle
}

// AuthURL returns the Google consent screen URL.
func (g *GoogleProvider) AuthURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return g.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code for a token.
func (g *GoogleProvider) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := g.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: token exchange: %w", err)
	}
	return tok, nil
}

// GetUserProfile fetches the Google user profile.
func (g *GoogleProvider) GetUserProfile(ctx context.Context, token *oauth2.Token) (*domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: create profile request: %w", err)
	}

	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google: profile fetch failed (%d): %s", resp.StatusCode, string(body))
	}

	var profile struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("google: decode profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("google: profile has no id")
	}

	return &domain.User{
		Email:      profile.Email,
		Name:       profile.Name,
		AvatarURL:  profile.Picture,
		Provider:   domain.ProviderGoogle,
		ProviderID: profile.ID,
	}, nil
}
