package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/oauth2"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/middleware"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/service"
	"github.com/arturoeanton/godsplan/internal/session"
	"github.com/arturoeanton/godsplan/internal/view"
)

// AuthHandler handles the login screen, both sign-in methods and logout.
type AuthHandler struct {
	site *Site
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(site *Site) *AuthHandler {
	return &AuthHandler{site: site}
}

// Register sets up auth routes.
func (h *AuthHandler) Register(app *fiber.App) {
	app.Get("/login", h.LoginPage)
	app.Post("/login/email-link", h.RequestEmailLink)
	app.Post("/login/email-link/complete", h.CompleteEmailLink)

	// Both providers redirect to the shared callback; the provider travels
	// in the state param as "provider:random".
	app.Get("/auth/:provider/login", h.FederatedLogin)
	app.Get("/auth/callback", h.FederatedCallback)

	app.Post("/logout", h.Logout)
}

// LoginPage renders the login screen. When the URL is a sign-in link it is
// redeemed first, asking for the email only if none was remembered.
func (h *AuthHandler) LoginPage(c fiber.Ctx) error {
	currentURL := h.site.baseURL(c) + c.OriginalURL()
	if h.site.Auth.IsPendingEmailLinkCompletion(currentURL) {
		return h.completeLink(c, "", currentURL)
	}
	if sessionState(c).Authenticated {
		return c.Redirect().Status(fiber.StatusSeeOther).To("/")
	}
	return h.renderLogin(c, fiber.StatusOK, view.LoginState{})
}

// RequestEmailLink mails a sign-in link to the submitted address.
func (h *AuthHandler) RequestEmailLink(c fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return h.renderLogin(c, fiber.StatusUnprocessableEntity, view.LoginState{EmailMissing: true})
	}

	// The link may be opened in another browser, so it carries the language.
	returnURL := h.site.baseURL(c) + "/login?" + langParam + "=" + url.QueryEscape(h.site.language(c))
	if err := h.site.Auth.RequestEmailLink(c.Context(), middleware.GetStorage(c), email, returnURL); err != nil {
		return h.renderLogin(c, authErrorStatus(err), view.LoginState{Email: email, Error: errorMessage(err)})
	}

	h.site.audit(c, "", domain.AuditActionEmailLinkSent, "email_link", email, "")
	return h.renderLogin(c, fiber.StatusOK, view.LoginState{Email: email, Sent: true})
}

// CompleteEmailLink redeems a sign-in link with the address the visitor
// typed into the confirmation prompt.
func (h *AuthHandler) CompleteEmailLink(c fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	link := c.FormValue("url")
	if email == "" {
		return h.renderLogin(c, fiber.StatusUnprocessableEntity, view.LoginState{
			NeedsEmail:   true,
			CompleteURL:  link,
			EmailMissing: true,
		})
	}
	return h.completeLink(c, email, link)
}

func (h *AuthHandler) completeLink(c fiber.Ctx, email, link string) error {
	identity, err := h.site.Auth.CompleteEmailLinkSignIn(c.Context(), middleware.GetStorage(c), email, link)
	if err != nil {
		pe, _ := port.AsAuthError(err)
		if pe != nil && pe.Code == port.CodeEmailRequired {
			return h.renderLogin(c, fiber.StatusOK, view.LoginState{NeedsEmail: true, CompleteURL: link})
		}
		if pe != nil && pe.Code == port.CodeEmailMismatch {
			return h.renderLogin(c, fiber.StatusUnprocessableEntity, view.LoginState{
				NeedsEmail:  true,
				CompleteURL: link,
				Email:       email,
				Error:       pe.Message,
			})
		}
		return h.renderLogin(c, authErrorStatus(err), view.LoginState{Error: errorMessage(err)})
	}
	return h.signIn(c, identity)
}

// FederatedLogin redirects to the provider's consent screen.
func (h *AuthHandler) FederatedLogin(c fiber.Ctx) error {
	provider := c.Params("provider")
	state := provider + ":" + generateState()
	verifier := oauth2.GenerateVerifier()

	authURL, err := h.site.Auth.FederatedAuthURL(provider, state, verifier)
	if err != nil {
		return h.renderLogin(c, fiber.StatusNotFound, view.LoginState{Error: errorMessage(err)})
	}

	h.setOAuthCookie(c, stateCookieName, state)
	h.setOAuthCookie(c, pkceCookieName, verifier)
	return c.Redirect().To(authURL)
}

// FederatedCallback completes the provider flow on the shared callback.
func (h *AuthHandler) FederatedCallback(c fiber.Ctx) error {
	state := c.Query("state")
	expected := c.Cookies(stateCookieName)
	verifier := c.Cookies(pkceCookieName)
	h.clearOAuthCookies(c)

	if code := c.Query("error"); code != "" {
		err := h.site.Auth.FederatedCallbackError(code, c.Query("error_description"))
		return h.renderLogin(c, authErrorStatus(err), view.LoginState{Error: errorMessage(err)})
	}

	if state == "" || expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		return h.renderLogin(c, fiber.StatusBadRequest, view.LoginState{
			Error: "Your sign-in session expired. Please try again.",
		})
	}

	provider, _, _ := strings.Cut(state, ":")
	identity, err := h.site.Auth.SignInWithFederatedPopup(c.Context(), provider, c.Query("code"), verifier)
	if err != nil {
		return h.renderLogin(c, authErrorStatus(err), view.LoginState{Error: errorMessage(err)})
	}
	return h.signIn(c, identity)
}

// Logout ends the session and returns home.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sess := middleware.GetSession(c)
	var userID string
	if id := sess.Current(); id != nil {
		userID = id.UID
	}

	if err := sess.Logout(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if userID != "" {
		h.site.audit(c, userID, domain.AuditActionLogout, "session", userID, "")
	}
	return c.Redirect().Status(fiber.StatusSeeOther).To("/")
}

func (h *AuthHandler) signIn(c fiber.Ctx, identity domain.Identity) error {
	if err := middleware.GetSession(c).Login(c.Context(), identity); err != nil {
		if errors.Is(err, session.ErrMissingIdentifier) {
			return h.renderLogin(c, fiber.StatusBadGateway, view.LoginState{
				Error: "The identity provider returned an incomplete profile.",
			})
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	details, _ := json.Marshal(map[string]string{"provider": identity.Provider})
	h.site.audit(c, identity.UID, domain.AuditActionLogin, "session", identity.UID, string(details))
	return c.Redirect().Status(fiber.StatusSeeOther).To("/")
}

func (h *AuthHandler) renderLogin(c fiber.Ctx, status int, st view.LoginState) error {
	lang, content := h.site.loadContent(c)

	bundle, err := service.OrEmpty(h.site.Translations.FetchLoginBundle(c.Context(), lang))
	if err != nil {
		h.site.lggr.Warnw("login labels unavailable, using defaults", "lang", lang, "err", err)
	}

	st.Providers = h.site.Auth.Providers()
	data := h.site.layout(c, "Login", lang, content)
	data["Login"] = view.NewLogin(bundle, st)
	return c.Status(status).Render("login", data)
}

// authErrorStatus maps an AuthError code onto an HTTP status.
func authErrorStatus(err error) int {
	pe, ok := port.AsAuthError(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch pe.Code {
	case port.CodeCancelled:
		return fiber.StatusOK
	case port.CodeInvalidEmail, port.CodeInvalidURL, port.CodeEmailRequired, port.CodeEmailMismatch:
		return fiber.StatusUnprocessableEntity
	case port.CodeInvalidLink, port.CodeExpiredLink:
		return fiber.StatusBadRequest
	case port.CodeUnknownProvider:
		return fiber.StatusNotFound
	case port.CodeDispatchFailed, port.CodeProvider:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
