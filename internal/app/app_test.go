package app_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/godsplan/internal/app"
	"github.com/arturoeanton/godsplan/internal/logger/loggertest"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/pkg/config"
)

func testConfig(rtdbURL string) *config.Config {
	return &config.Config{
		Port:                "0",
		AppName:             "God's Plan",
		Env:                 "test",
		BaseURL:             "http://site.test",
		LinkSecret:          "0123456789abcdef0123456789abcdef",
		LinkIssuer:          "godsplan",
		LinkTTL:             "1h",
		StorageBackend:      config.BackendMemory,
		ContentBackend:      config.BackendRTDB,
		FirebaseDatabaseURL: rtdbURL,
		ContentCacheTTL:     "1m",
		DefaultLanguage:     "en",
		EmailJSBaseURL:      "http://emailjs.invalid",
		ContactRateLimit:    5,
		AdminEmails:         "admin@example.com",
	}
}

func rtdbServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translations/en.json":
			_, _ = io.WriteString(w, `{"hero":{"title":"Plan your days"},"nav":{"getStarted":"Begin now"}}`)
		default:
			_, _ = io.WriteString(w, "null")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_MemoryBackendsServeSite(t *testing.T) {
	a, err := app.New(testConfig(rtdbServer(t).URL), loggertest.New(t))
	require.NoError(t, err)

	resp, err := a.Handler().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Plan your days")
	assert.Contains(t, string(body), "Begin now")

	resp, err = a.Handler().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status       string           `json:"status"`
		ContentCache *port.CacheStats `json:"contentCache"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	require.NotNil(t, health.ContentCache)
	assert.Positive(t, health.ContentCache.Misses)
	assert.Positive(t, health.ContentCache.Size)
}

func TestNew_UncachedContentOmitsCacheStats(t *testing.T) {
	cfg := testConfig(rtdbServer(t).URL)
	cfg.ContentCacheTTL = "0s"
	a, err := app.New(cfg, loggertest.New(t))
	require.NoError(t, err)

	resp, err := a.Handler().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "contentCache")
}

func TestNew_AuditLogsNeedAdmin(t *testing.T) {
	a, err := app.New(testConfig(rtdbServer(t).URL), loggertest.New(t))
	require.NoError(t, err)

	resp, err := a.Handler().Test(httptest.NewRequest(http.MethodGet, "/api/v1/audit/logs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNew_PostgresContentNeedsDatabase(t *testing.T) {
	cfg := testConfig("http://unused.test")
	cfg.ContentBackend = config.BackendPostgres

	a, err := app.New(cfg, loggertest.New(t))
	require.Error(t, err)
	assert.Nil(t, a)
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	cfg := testConfig("http://unused.test")
	cfg.StorageBackend = config.BackendRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := app.New(cfg, loggertest.New(t))
	require.Error(t, err)
}
