package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/arturoeanton/godsplan/internal/domain"
)

const (
	githubProfileURL = "https://api.github.com/user"
	githubEmailsURL  = "https://api.github.com/user/emails"
)

// GitHubProvider implements port.AuthProvider for GitHub OAuth.
type GitHubProvider struct {
	oauth      *oauth2.Config
	profileURL string
	emailsURL  string
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(clientID, clientSecret, redirectURL string, opts ...Option) *GitHubProvider {
	o := applyOptions(github.Endpoint, githubProfileURL, githubEmailsURL, opts)
	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     o.endpoint,
		},
		profileURL: o.profileURL,
		emailsURL:  o.emailsURL,
	}
}

// ProviderName returns "github".
func (g *GitHubProvider) ProviderName() string {
	return domain.ProviderGitHub
}

// AuthURL returns the GitHub consent screen URL.
func (g *GitHubProvider) AuthURL(state, verifier string) string {
	if verifier == "" {
		return g.oauth.AuthCodeURL(state)
	}
	return g.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode exchanges an authorization code for a token.
func (g *GitHubProvider) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := g.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("github: token exchange: %w", err)
	}
	return tok, nil
}

// GetUserProfile fetches the GitHub user profile.
func (g *GitHubProvider) GetUserProfile(ctx context.Context, token *oauth2.Token) (*domain.User, error) {
	client := g.oauth.Client(ctx, token)

	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(ctx, client, g.profileURL, &profile); err != nil {
		return nil, fmt.Errorf("github: fetch profile: %w", err)
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("github: profile has no id")
	}

	// Private addresses are only listed by /user/emails.
	email := profile.Email
	if email == "" {
		email, _ = g.fetchPrimaryEmail(ctx, client)
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return &domain.User{
		Email:      email,
		Name:       name,
		AvatarURL:  profile.AvatarURL,
		Provider:   domain.ProviderGitHub,
		ProviderID: strconv.FormatInt(profile.ID, 10),
	}, nil
}

func (g *GitHubProvider) fetchPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(ctx, client, g.emailsURL, &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", fmt.Errorf("no email found")
}

func (g *GitHubProvider) getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
