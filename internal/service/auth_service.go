package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/port"
)

// Query parameters that mark a URL as an email sign-in link.
const (
	LinkModeParam = "mode"
	LinkModeValue = "signIn"
	LinkCodeParam = "oobCode"
)

// AuthDeps are the collaborators of AuthGateway.
type AuthDeps struct {
	Providers        port.AuthProviderRegistry
	Users            port.UserDirectory
	Links            port.LinkTokenCodec
	Ledger           port.LinkLedger
	Mailer           port.EmailDispatcher
	SignInTemplateID string
}

// AuthGateway normalizes federated sign-in and passwordless email links
// into one Identity shape. Every failure it returns is a port.Error of
// KindAuth.
type AuthGateway struct {
	deps AuthDeps
	lggr logger.Logger
}

// NewAuthGateway creates the gateway.
func NewAuthGateway(deps AuthDeps, lggr logger.Logger) *AuthGateway {
	return &AuthGateway{deps: deps, lggr: lggr.Named("auth")}
}

// Providers returns the configured federated provider names, sorted.
func (g *AuthGateway) Providers() []string {
	names := make([]string, 0, len(g.deps.Providers))
	for name := range g.deps.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FederatedAuthURL returns the consent URL the sign-in popup opens.
func (g *AuthGateway) FederatedAuthURL(providerName, state, verifier string) (string, error) {
	provider, ok := g.deps.Providers[providerName]
	if !ok {
		return "", port.NewAuthError(port.CodeUnknownProvider,
			fmt.Sprintf("Sign-in with %q is not available.", providerName), port.ErrUnknownProvider)
	}
	return provider.AuthURL(state, verifier), nil
}

// FederatedCallbackError converts a provider-reported failure on the
// callback (?error=...&error_description=...) into an AuthError.
func (g *AuthGateway) FederatedCallbackError(code, description string) error {
	msg := description
	if code == "access_denied" {
		if msg == "" {
			msg = "Sign-in was cancelled."
		}
		return port.NewAuthError(port.CodeCancelled, msg, nil)
	}
	if msg == "" {
		msg = "The identity provider rejected the sign-in: " + code
	}
	return port.NewAuthError(port.CodeProvider, msg, nil)
}

// SignInWithFederatedPopup completes the provider consent flow: exchanges
// the code, fetches the profile and maps it onto a canonical user.
func (g *AuthGateway) SignInWithFederatedPopup(ctx context.Context, providerName, code, verifier string) (domain.Identity, error) {
	provider, ok := g.deps.Providers[providerName]
	if !ok {
		return domain.Identity{}, port.NewAuthError(port.CodeUnknownProvider,
			fmt.Sprintf("Sign-in with %q is not available.", providerName), port.ErrUnknownProvider)
	}
	if code == "" {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Missing authorization code.", nil)
	}

	tokens, err := provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Could not complete sign-in with "+providerName+".", err)
	}

	profile, err := provider.GetUserProfile(ctx, tokens)
	if err != nil {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Could not read your "+providerName+" profile.", err)
	}

	user, err := g.deps.Users.UpsertUser(ctx, profile)
	if err != nil {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Could not save your account.", fmt.Errorf("upsert user: %w", err))
	}

	g.lggr.Infow("user authenticated", "user_id", user.ID, "provider", providerName)
	return user.Identity(), nil
}

// RequestEmailLink mails a one-time sign-in link for email that returns to
// returnURL, then remembers email in storage so the link can be redeemed
// without asking again.
func (g *AuthGateway) RequestEmailLink(ctx context.Context, storage port.LocalStorage, email, returnURL string) error {
	email = strings.TrimSpace(email)
	if !domain.ValidEmail(email) {
		return port.NewAuthError(port.CodeInvalidEmail, "Please enter a valid email address.", nil)
	}
	target, err := url.Parse(returnURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return port.NewAuthError(port.CodeInvalidURL, "The sign-in return address is invalid.", err)
	}

	token, claims, err := g.deps.Links.Issue(email)
	if err != nil {
		return port.NewAuthError(port.CodeProvider, "Could not create a sign-in link.", err)
	}

	q := target.Query()
	q.Set(LinkModeParam, LinkModeValue)
	q.Set(LinkCodeParam, token)
	target.RawQuery = q.Encode()

	params := map[string]string{
		"to_email":   email,
		"link":       target.String(),
		"expires_at": claims.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	if err := g.deps.Mailer.Send(ctx, g.deps.SignInTemplateID, params); err != nil {
		return port.NewAuthError(port.CodeDispatchFailed, "We could not send the sign-in link. Please try again.", err)
	}

	raw, _ := json.Marshal(email)
	if err := storage.SetItem(ctx, port.KeyEmailForSignIn, string(raw)); err != nil {
		// The link is already out; completion will ask for the address instead.
		g.lggr.Warnw("persist pending sign-in email failed", "err", err)
	}

	g.lggr.Infow("sign-in link sent", "link_id", claims.ID)
	return nil
}

// IsPendingEmailLinkCompletion reports whether currentURL carries a
// well-formed sign-in link code. It never fails.
func (g *AuthGateway) IsPendingEmailLinkCompletion(currentURL string) bool {
	_, ok := g.linkCode(currentURL)
	return ok
}

func (g *AuthGateway) linkCode(currentURL string) (string, bool) {
	u, err := url.Parse(currentURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if q.Get(LinkModeParam) != LinkModeValue {
		return "", false
	}
	code := q.Get(LinkCodeParam)
	if !g.deps.Links.WellFormed(code) {
		return "", false
	}
	return code, true
}

// PendingEmail returns the address remembered by RequestEmailLink, or "".
// Unreadable values count as absent.
func (g *AuthGateway) PendingEmail(ctx context.Context, storage port.LocalStorage) string {
	raw, ok, err := storage.GetItem(ctx, port.KeyEmailForSignIn)
	if err != nil || !ok {
		return ""
	}
	var email string
	if err := json.Unmarshal([]byte(raw), &email); err != nil {
		email = raw
	}
	email = strings.TrimSpace(email)
	if !domain.ValidEmail(email) {
		return ""
	}
	return email
}

// CompleteEmailLinkSignIn redeems the code in currentURL for email. An empty
// email falls back to the remembered one; when neither exists the error has
// code email_required so the caller can ask for it.
func (g *AuthGateway) CompleteEmailLinkSignIn(ctx context.Context, storage port.LocalStorage, email, currentURL string) (domain.Identity, error) {
	code, ok := g.linkCode(currentURL)
	if !ok {
		return domain.Identity{}, port.NewAuthError(port.CodeInvalidLink, "This sign-in link is invalid.", nil)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = g.PendingEmail(ctx, storage)
	}
	if email == "" {
		return domain.Identity{}, port.NewAuthError(port.CodeEmailRequired, "Please provide your email for confirmation.", nil)
	}

	claims, err := g.deps.Links.Verify(code)
	switch {
	case errors.Is(err, port.ErrLinkExpired):
		return domain.Identity{}, port.NewAuthError(port.CodeExpiredLink, "This sign-in link has expired. Request a new one.", err)
	case err != nil:
		return domain.Identity{}, port.NewAuthError(port.CodeInvalidLink, "This sign-in link is invalid.", err)
	}
	if !strings.EqualFold(claims.Email, email) {
		return domain.Identity{}, port.NewAuthError(port.CodeEmailMismatch, "The email does not match the sign-in link.", nil)
	}

	fresh, err := g.deps.Ledger.Consume(ctx, claims.ID, claims.ExpiresAt)
	if err != nil {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Could not verify the sign-in link.", err)
	}
	if !fresh {
		return domain.Identity{}, port.NewAuthError(port.CodeInvalidLink, "This sign-in link has already been used.", nil)
	}

	user, err := g.deps.Users.UpsertUser(ctx, &domain.User{
		Email:      claims.Email,
		Provider:   domain.ProviderEmailLink,
		ProviderID: claims.Email,
	})
	if err != nil {
		return domain.Identity{}, port.NewAuthError(port.CodeProvider, "Could not save your account.", fmt.Errorf("upsert user: %w", err))
	}

	if err := storage.RemoveItem(ctx, port.KeyEmailForSignIn); err != nil {
		g.lggr.Warnw("clear pending sign-in email failed", "err", err)
	}

	g.lggr.Infow("user authenticated", "user_id", user.ID, "provider", domain.ProviderEmailLink)
	return user.Identity(), nil
}
