package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unsafe"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/godsplan/internal/adapter/storage"
	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger/loggertest"
	"github.com/arturoeanton/godsplan/internal/middleware"
	"github.com/arturoeanton/godsplan/internal/port"
)

func newApp(t *testing.T, backend port.StorageBackend, handlers ...fiber.Handler) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(middleware.ClientSession(middleware.ClientConfig{
		Backend: backend,
		Logger:  loggertest.New(t),
	}))
	rest := make([]any, 0, len(handlers)-1)
	for _, h := range handlers[1:] {
		rest = append(rest, h)
	}
	app.Get("/", handlers[0], rest...)
	return app
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestClientSession_MintsClientCookie(t *testing.T) {
	var authenticated bool
	var loading bool
	app := newApp(t, storage.NewMemoryBackend(), func(c fiber.Ctx) error {
		s := middleware.GetSession(c)
		require.NotNil(t, s)
		require.NotNil(t, middleware.GetStorage(c))
		authenticated = s.IsAuthenticated()
		loading = s.Loading()
		return c.SendString(middleware.GetClientID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ck := cookieNamed(resp, middleware.DefaultClientCookie)
	require.NotNil(t, ck)
	_, err = uuid.Parse(ck.Value)
	assert.NoError(t, err)
	assert.True(t, ck.HttpOnly)
	assert.False(t, authenticated)
	assert.False(t, loading)
}

func TestClientSession_RestoresPersistedUser(t *testing.T) {
	backend := storage.NewMemoryBackend()
	clientID := uuid.NewString()
	require.NoError(t, backend.Scope(clientID).SetItem(context.Background(), port.KeyUser,
		`{"uid":"u1","email":"a@b.com","displayName":"a","photoURL":"","provider":"emailLink"}`))

	var got *domain.Identity
	app := newApp(t, backend, func(c fiber.Ctx) error {
		got = middleware.CurrentIdentity(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.DefaultClientCookie, Value: clientID})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Nil(t, cookieNamed(resp, middleware.DefaultClientCookie), "existing cookie is kept")
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UID)
}

func TestClientSession_ReplacesForgedClientID(t *testing.T) {
	app := newApp(t, storage.NewMemoryBackend(), func(c fiber.Ctx) error {
		return c.SendString(middleware.GetClientID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.DefaultClientCookie, Value: "../../etc"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	ck := cookieNamed(resp, middleware.DefaultClientCookie)
	require.NotNil(t, ck)
	assert.NotEqual(t, "../../etc", ck.Value)
}

func TestRequireAdmin(t *testing.T) {
	backend := storage.NewMemoryBackend()
	signedIn := func(email string) string {
		id := uuid.NewString()
		require.NoError(t, backend.Scope(id).SetItem(context.Background(), port.KeyUser,
			`{"uid":"u-`+email+`","email":"`+email+`"}`))
		return id
	}
	isAdmin := func(email string) bool { return email == "root@example.com" }
	app := newApp(t, backend, middleware.RequireAdmin(isAdmin), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name     string
		clientID string
		want     int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"regular user", signedIn("user@example.com"), http.StatusForbidden},
		{"admin", signedIn("root@example.com"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.clientID != "" {
				req.AddCookie(&http.Cookie{Name: middleware.DefaultClientCookie, Value: tt.clientID})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

type auditRecord struct {
	userID, action, resource, resourceID string
}

type chanWriter struct {
	ch  chan auditRecord
	err error
}

func (w *chanWriter) WriteAudit(userID, action, resource, resourceID, _, _, _ string) error {
	w.ch <- auditRecord{userID, action, resource, resourceID}
	return w.err
}

func TestAuditMiddleware_RecordsRequest(t *testing.T) {
	w := &chanWriter{ch: make(chan auditRecord, 1)}
	app := fiber.New()
	app.Use(middleware.AuditMiddleware(w, loggertest.New(t)))
	app.Get("/api/v1/health", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)

	select {
	case rec := <-w.ch:
		assert.Equal(t, "anonymous", rec.userID)
		assert.Equal(t, domain.AuditActionHTTPRequest, rec.action)
		assert.Equal(t, "api", rec.resource)
		assert.Equal(t, "/api/v1/health", rec.resourceID)
	case <-time.After(2 * time.Second):
		t.Fatal("audit record not written")
	}
}

type gatedWriter struct {
	release chan struct{}
	got     chan auditRecord
}

func (w *gatedWriter) WriteAudit(userID, action, resource, resourceID, _, _, _ string) error {
	<-w.release
	w.got <- auditRecord{userID, action, resource, resourceID}
	return nil
}

func TestEmitAudit_CopiesRequestScopedStrings(t *testing.T) {
	w := &gatedWriter{release: make(chan struct{}), got: make(chan auditRecord, 1)}

	// Stands in for a request buffer that Fiber recycles after the handler.
	buf := []byte("asha@example.com")
	email := unsafe.String(&buf[0], len(buf))

	middleware.EmitAudit(w, loggertest.New(t), domain.AuditLog{
		UserID:     "anonymous",
		Action:     domain.AuditActionEmailLinkSent,
		Resource:   "email_link",
		ResourceID: email,
	})
	copy(buf, "xxxxxxxxxxxxxxxx")
	close(w.release)

	select {
	case rec := <-w.got:
		assert.Equal(t, "asha@example.com", rec.resourceID)
	case <-time.After(2 * time.Second):
		t.Fatal("audit record not written")
	}
}

func TestMultiAuditWriter_JoinsErrors(t *testing.T) {
	ok := &chanWriter{ch: make(chan auditRecord, 1)}
	failing := &chanWriter{ch: make(chan auditRecord, 1), err: errors.New("kafka down")}

	err := middleware.MultiAuditWriter{ok, nil, failing}.WriteAudit("u1", "login", "session", "u1", "{}", "", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka down")
	assert.Len(t, ok.ch, 1)
	assert.Len(t, failing.ch, 1)
}
