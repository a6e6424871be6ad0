package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/arturoeanton/godsplan/internal/adapter/auth"
	"github.com/arturoeanton/godsplan/internal/adapter/storage"
	"github.com/arturoeanton/godsplan/internal/adapter/store"
	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/handler"
	"github.com/arturoeanton/godsplan/internal/logger/loggertest"
	"github.com/arturoeanton/godsplan/internal/middleware"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/service"
	"github.com/arturoeanton/godsplan/web"
)

const (
	testBaseURL = "http://site.test"
	testSecret  = "0123456789abcdef0123456789abcdef"
	adminEmail  = "admin@example.com"
)

type fakeContent struct {
	mu    sync.Mutex
	nodes map[string]string
	err   error
}

func (c *fakeContent) Get(_ context.Context, path string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.nodes[path]
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(v), true, nil
}

func (c *fakeContent) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

type sentMail struct {
	template string
	params   map[string]string
}

type fakeMailer struct {
	mu    sync.Mutex
	sends []sentMail
	err   error
}

func (m *fakeMailer) Send(_ context.Context, templateID string, params map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, sentMail{template: templateID, params: params})
	return nil
}

func (m *fakeMailer) sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sends...)
}

// fakeProvider accepts code "ok".
type fakeProvider struct{}

func (fakeProvider) ProviderName() string { return domain.ProviderGoogle }

func (fakeProvider) AuthURL(state, _ string) string {
	return "https://idp.example/auth?state=" + url.QueryEscape(state)
}

func (fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	if code != "ok" || verifier == "" {
		return nil, errors.New("invalid_grant")
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (fakeProvider) GetUserProfile(context.Context, *oauth2.Token) (*domain.User, error) {
	return &domain.User{
		Email:      "asha@example.com",
		Name:       "Asha",
		Provider:   domain.ProviderGoogle,
		ProviderID: "g-1",
	}, nil
}

type harness struct {
	app      *fiber.App
	content  *fakeContent
	mailer   *fakeMailer
	backend  *storage.MemoryBackend
	store    *store.MemoryStore
	clientID string
}

func newHarness(t *testing.T, rateLimit int) *harness {
	t.Helper()
	lggr := loggertest.New(t)

	content := &fakeContent{nodes: map[string]string{
		"translations/en": `{
			"nav": {"getStarted": "Get Started", "features": "Features"},
			"hero": {"title": "Plan with purpose", "startTrial": "Start free"},
			"featuresTitle": "Why us",
			"features": [{"title": "Daily plans", "description": "Every morning"}]
		}`,
		"translations/hi": `{"hero": {"title": "उद्देश्य के साथ योजना"}}`,
		"login/en":        `{"welcome": "Welcome back", "linkSentMessage": "Link sent, check your inbox"}`,
	}}
	mailer := &fakeMailer{}
	backend := storage.NewMemoryBackend()
	mem := store.NewMemoryStore()

	gateway := service.NewAuthGateway(service.AuthDeps{
		Providers:        port.AuthProviderRegistry{domain.ProviderGoogle: fakeProvider{}},
		Users:            mem,
		Links:            auth.NewLinkTokens(testSecret, "godsplan-test", 15*time.Minute),
		Ledger:           mem,
		Mailer:           mailer,
		SignInTemplateID: "signin",
	}, lggr)

	site := handler.NewSite(handler.SiteDeps{
		Auth:             gateway,
		Translations:     service.NewTranslationLoader(content, lggr),
		Contact:          service.NewContactService(mailer, "contact", lggr),
		Backend:          backend,
		AuditWriter:      mem,
		AuditReader:      mem,
		IsAdmin:          func(email string) bool { return email == adminEmail },
		Logger:           lggr,
		AppName:          "godsplan",
		BaseURL:          testBaseURL,
		ContactRateLimit: rateLimit,
	})

	return &harness{
		app:      handler.NewApp(site, handler.AppConfig{Views: web.Engine()}),
		content:  content,
		mailer:   mailer,
		backend:  backend,
		store:    mem,
		clientID: uuid.NewString(),
	}
}

func (h *harness) do(t *testing.T, method, target string, form url.Values, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: middleware.DefaultClientCookie, Value: h.clientID})
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := h.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (h *harness) signIn(t *testing.T, email string) {
	t.Helper()
	raw, _ := json.Marshal(domain.NewIdentity("u-"+email, email, "", "", domain.ProviderEmailLink))
	require.NoError(t, h.backend.Scope(h.clientID).SetItem(context.Background(), port.KeyUser, string(raw)))
}

func (h *harness) persisted(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.backend.Scope(h.clientID).GetItem(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHome_SignedOut(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Plan with purpose")
	assert.Contains(t, body, "Daily plans")
	assert.Contains(t, body, `href="/login"`)
	assert.Contains(t, body, "Get Started")
}

func TestHome_SignedInShowsAvatarInitial(t *testing.T) {
	h := newHarness(t, 0)
	h.signIn(t, "a@b.com")

	_, body := h.do(t, http.MethodGet, "/", nil)

	assert.Contains(t, body, `<span class="avatar" title="a@b.com">A</span>`)
	assert.Contains(t, body, `action="/logout"`)
}

func TestHome_ContentUnavailable(t *testing.T) {
	h := newHarness(t, 0)
	h.content.fail(errors.New("connection refused"))

	resp, body := h.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Failed to load content.")
	assert.Contains(t, body, "Retry")
}

func TestLanguageSwitch_KeepsPreviousBundleOnFailure(t *testing.T) {
	h := newHarness(t, 0)

	_, body := h.do(t, http.MethodGet, "/", nil)
	require.Contains(t, body, "Plan with purpose")

	resp, _ := h.do(t, http.MethodPost, "/language", url.Values{"lang": {"hi"}, "next": {"/"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	langCookie := cookieNamed(resp, "lang")
	require.NotNil(t, langCookie)
	assert.Equal(t, "hi", langCookie.Value)

	h.content.fail(errors.New("timeout"))
	_, body = h.do(t, http.MethodGet, "/", nil, langCookie)
	assert.Contains(t, body, "Plan with purpose", "previous bundle stays on screen")
	assert.Contains(t, body, "Failed to load content.")

	h.content.fail(nil)
	_, body = h.do(t, http.MethodGet, "/", nil, langCookie)
	assert.Contains(t, body, "उद्देश्य के साथ योजना")
	assert.Contains(t, body, `lang="hi"`)
}

func TestLanguageSwitch_RejectsOffsiteRedirect(t *testing.T) {
	h := newHarness(t, 0)

	resp, _ := h.do(t, http.MethodPost, "/language", url.Values{"lang": {"hi"}, "next": {"//evil.example"}})

	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestEmailLink_SameBrowser(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {"asha@example.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Link sent, check your inbox")

	sent := h.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "signin", sent[0].template)
	assert.Equal(t, "asha@example.com", sent[0].params["to_email"])

	pending, ok := h.persisted(t, port.KeyEmailForSignIn)
	require.True(t, ok)
	assert.Equal(t, `"asha@example.com"`, pending)

	link, err := url.Parse(sent[0].params["link"])
	require.NoError(t, err)
	assert.Equal(t, "site.test", link.Host)
	assert.Equal(t, "/login", link.Path)

	resp, _ = h.do(t, http.MethodGet, link.RequestURI(), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, ok = h.persisted(t, port.KeyEmailForSignIn)
	assert.False(t, ok, "pending email is cleared")
	raw, ok := h.persisted(t, port.KeyUser)
	require.True(t, ok)
	var id domain.Identity
	require.NoError(t, json.Unmarshal([]byte(raw), &id))
	assert.Equal(t, "asha@example.com", id.Email)
	assert.Equal(t, "asha", id.DisplayName)

	// The same link cannot be redeemed twice.
	resp, body = h.do(t, http.MethodPost, "/login/email-link/complete", url.Values{
		"email": {"asha@example.com"},
		"url":   {link.String()},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "already been used")
}

func TestEmailLink_OtherBrowserAsksForEmail(t *testing.T) {
	h := newHarness(t, 0)
	_, _ = h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {"asha@example.com"}})
	link, err := url.Parse(h.mailer.sent()[0].params["link"])
	require.NoError(t, err)

	other := *h
	other.clientID = uuid.NewString()

	resp, body := other.do(t, http.MethodGet, link.RequestURI(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please provide your email for confirmation")
	assert.Contains(t, body, `action="/login/email-link/complete"`)

	resp, body = other.do(t, http.MethodPost, "/login/email-link/complete", url.Values{
		"email": {"someone@else.com"},
		"url":   {link.String()},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "does not match")

	resp, _ = other.do(t, http.MethodPost, "/login/email-link/complete", url.Values{
		"email": {"Asha@Example.com"},
		"url":   {link.String()},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestEmailLink_Validation(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please enter your email address.")

	resp, _ = h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, h.mailer.sent())
}

func TestEmailLink_DispatchFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.mailer.err = errors.New("quota exceeded")

	resp, body := h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {"asha@example.com"}})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "could not send the sign-in link")
	_, ok := h.persisted(t, port.KeyEmailForSignIn)
	assert.False(t, ok)
}

func TestFederated_RoundTrip(t *testing.T) {
	h := newHarness(t, 0)

	resp, _ := h.do(t, http.MethodGet, "/auth/google/login", nil)
	require.GreaterOrEqual(t, resp.StatusCode, 300)
	require.Less(t, resp.StatusCode, 400)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example", location.Host)

	state := location.Query().Get("state")
	assert.True(t, strings.HasPrefix(state, "google:"))
	stateCookie := cookieNamed(resp, "__oauth_state")
	pkceCookie := cookieNamed(resp, "__oauth_pkce")
	require.NotNil(t, stateCookie)
	require.NotNil(t, pkceCookie)
	assert.Equal(t, state, stateCookie.Value)

	resp, _ = h.do(t, http.MethodGet, "/auth/callback?code=ok&state="+url.QueryEscape(state), nil,
		&http.Cookie{Name: stateCookie.Name, Value: stateCookie.Value},
		&http.Cookie{Name: pkceCookie.Name, Value: pkceCookie.Value})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	raw, ok := h.persisted(t, port.KeyUser)
	require.True(t, ok)
	var id domain.Identity
	require.NoError(t, json.Unmarshal([]byte(raw), &id))
	assert.Equal(t, "Asha", id.DisplayName)
	assert.Equal(t, domain.ProviderGoogle, id.Provider)
}

func TestFederated_Failures(t *testing.T) {
	h := newHarness(t, 0)

	t.Run("unknown provider", func(t *testing.T) {
		resp, _ := h.do(t, http.MethodGet, "/auth/myspace/login", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("cancelled", func(t *testing.T) {
		resp, body := h.do(t, http.MethodGet, "/auth/callback?error=access_denied", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Sign-in was cancelled.")
	})

	t.Run("state mismatch", func(t *testing.T) {
		resp, _ := h.do(t, http.MethodGet, "/auth/callback?code=ok&state=google:abc", nil,
			&http.Cookie{Name: "__oauth_state", Value: "google:xyz"},
			&http.Cookie{Name: "__oauth_pkce", Value: "verifier"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad code", func(t *testing.T) {
		resp, _ := h.do(t, http.MethodGet, "/auth/callback?code=bad&state=google:abc", nil,
			&http.Cookie{Name: "__oauth_state", Value: "google:abc"},
			&http.Cookie{Name: "__oauth_pkce", Value: "verifier"})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		_, ok := h.persisted(t, port.KeyUser)
		assert.False(t, ok)
	})
}

func TestLoginPage_RedirectsWhenSignedIn(t *testing.T) {
	h := newHarness(t, 0)
	h.signIn(t, "a@b.com")

	resp, _ := h.do(t, http.MethodGet, "/login", nil)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, 0)
	h.signIn(t, "a@b.com")

	resp, _ := h.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, ok := h.persisted(t, port.KeyUser)
	assert.False(t, ok)

	// Idempotent.
	resp, _ = h.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestContact(t *testing.T) {
	h := newHarness(t, 0)

	t.Run("invalid keeps values", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPost, "/contact", url.Values{
			"name":    {"Bharat"},
			"email":   {"not-an-email"},
			"subject": {""},
			"message": {"Hello"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, `value="Bharat"`)
		assert.Contains(t, body, "Please enter a valid email address.")
		assert.Contains(t, body, "This field is required.")
		assert.Empty(t, h.mailer.sent())
	})

	t.Run("sent once", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPost, "/contact", url.Values{
			"name":    {"Bharat"},
			"email":   {"b@example.com"},
			"subject": {"Hello"},
			"message": {"Namaste"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Your message has been sent.")
		assert.NotContains(t, body, `value="Bharat"`)

		sent := h.mailer.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "contact", sent[0].template)
		assert.Equal(t, "Namaste", sent[0].params["message"])
	})

	t.Run("dispatch failure keeps values", func(t *testing.T) {
		h.mailer.err = errors.New("smtp down")
		defer func() { h.mailer.err = nil }()

		resp, body := h.do(t, http.MethodPost, "/contact", url.Values{
			"name":    {"Bharat"},
			"email":   {"b@example.com"},
			"subject": {"Hello"},
			"message": {"Namaste"},
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, body, "Failed to send message. Please try again.")
		assert.Contains(t, body, `value="Bharat"`)
	})
}

func TestContact_RateLimited(t *testing.T) {
	h := newHarness(t, 1)
	form := url.Values{"name": {"B"}, "email": {"b@example.com"}, "subject": {"S"}, "message": {"M"}}

	resp, _ := h.do(t, http.MethodPost, "/contact", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/contact", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many messages")
	assert.Len(t, h.mailer.sent(), 1)
}

func TestFallback(t *testing.T) {
	h := newHarness(t, 0)

	resp, _ := h.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, body := h.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, body)
}

func TestAPI(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"healthy"`)

	_, body = h.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.JSONEq(t, `{"user":null,"isAuthenticated":false,"loading":false}`, body)

	resp, body = h.do(t, http.MethodGet, "/api/v1/translations/en", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Plan with purpose")

	resp, _ = h.do(t, http.MethodGet, "/api/v1/translations/en/login", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/v1/translations/fr", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"not_found"`)

	h.content.fail(errors.New("down"))
	resp, _ = h.do(t, http.MethodGet, "/api/v1/translations/en", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuditLogs_AdminOnly(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.store.WriteAudit("u1", domain.AuditActionLogin, "session", "u1", "{}", "", ""))

	resp, _ := h.do(t, http.MethodGet, "/api/v1/audit/logs", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h.signIn(t, "user@example.com")
	resp, _ = h.do(t, http.MethodGet, "/api/v1/audit/logs", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.signIn(t, adminEmail)
	resp, body := h.do(t, http.MethodGet, "/api/v1/audit/logs?action=login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Logs  []domain.AuditLog `json:"logs"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "u1", out.Logs[0].UserID)
}

func TestForms_GuardAgainstDoubleSubmit(t *testing.T) {
	h := newHarness(t, 0)

	for _, path := range []string{"/contact", "/login"} {
		resp, body := h.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body, "data-submit-once>", path)
		assert.Contains(t, body, `form.hasAttribute("data-submit-once")`, path)
	}
}

func TestEmailLink_CarriesLanguage(t *testing.T) {
	h := newHarness(t, 0)

	_, _ = h.do(t, http.MethodPost, "/login/email-link", url.Values{"email": {"asha@example.com"}},
		&http.Cookie{Name: "lang", Value: "hi"})
	sent := h.mailer.sent()
	require.Len(t, sent, 1)

	link, err := url.Parse(sent[0].params["link"])
	require.NoError(t, err)
	assert.Equal(t, "hi", link.Query().Get("lang"))
	assert.Equal(t, service.LinkModeValue, link.Query().Get(service.LinkModeParam))

	// A browser without the cookie still renders the linked language.
	_, body := h.do(t, http.MethodGet, "/?lang=hi", nil)
	assert.Contains(t, body, "उद्देश्य के साथ योजना")

	_, body = h.do(t, http.MethodGet, "/?lang=xx", nil)
	assert.Contains(t, body, "Plan with purpose")
}
