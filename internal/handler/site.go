package handler

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/middleware"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/service"
	"github.com/arturoeanton/godsplan/internal/view"
)

const (
	langCookie    = "lang"
	langParam     = "lang"
	langCookieAge = 365 * 24 * time.Hour
)

// SiteDeps are the collaborators shared by every handler.
type SiteDeps struct {
	Auth         *service.AuthGateway
	Translations *service.TranslationLoader
	Contact      *service.ContactService
	Backend      port.StorageBackend
	AuditWriter  middleware.AuditWriter
	AuditReader  AuditReader
	ContentCache port.CacheStatsReporter
	IsAdmin      func(email string) bool
	Logger       logger.Logger

	AppName          string
	Version          string
	BaseURL          string
	DefaultLang      string
	CookieSecure     bool
	ContactRateLimit int
}

// Site holds the dependencies and per-client state of the web surface.
type Site struct {
	SiteDeps
	shells *shellRegistry
	lggr   logger.Logger
}

// NewSite fills defaults and returns the site.
func NewSite(deps SiteDeps) *Site {
	if deps.DefaultLang == "" {
		deps.DefaultLang = domain.LangEnglish
	}
	if deps.IsAdmin == nil {
		deps.IsAdmin = func(string) bool { return false }
	}
	if deps.Version == "" {
		deps.Version = "1.0.0"
	}
	return &Site{
		SiteDeps: deps,
		shells:   newShellRegistry(defaultMaxShells),
		lggr:     deps.Logger.Named("http"),
	}
}

// AppConfig controls the Fiber app built by NewApp.
type AppConfig struct {
	Views          *html.Engine
	CORSOrigins    []string
	RequestLogging bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// NewApp builds the Fiber app with global middleware and every route mounted.
func NewApp(site *Site, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      site.AppName,
		Views:        cfg.Views,
		ViewsLayout:  "layouts/main",
		ErrorHandler: ErrorHandler(site.lggr),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	app.Use(recover.New())
	if cfg.RequestLogging {
		app.Use(fiberlogger.New())
	}
	if len(cfg.CORSOrigins) > 0 {
		app.Use("/api", cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowCredentials: !slices.Contains(cfg.CORSOrigins, "*"),
		}))
	}

	site.Mount(app)
	return app
}

// Mount registers client session, audit and every route on app.
func (s *Site) Mount(app *fiber.App) {
	app.Use(middleware.ClientSession(middleware.ClientConfig{
		Backend:      s.Backend,
		Logger:       s.Logger,
		CookieSecure: s.CookieSecure,
	}))
	if s.AuditWriter != nil {
		app.Use(middleware.AuditMiddleware(s.AuditWriter, s.Logger))
	}

	pages := NewPageHandler(s)
	pages.Register(app)

	NewAuthHandler(s).Register(app)

	api := app.Group("/api/v1")
	NewAPIHandler(s).Register(api)
	if s.AuditReader != nil {
		NewAuditHandler(s.AuditReader).Register(api, middleware.RequireAdmin(s.IsAdmin))
	}

	pages.RegisterFallback(app)
}

func (s *Site) language(c fiber.Ctx) string {
	preferred := c.Query(langParam)
	if !domain.IsSupportedLanguage(preferred) {
		preferred = c.Cookies(langCookie)
	}
	return service.NegotiateLanguage(preferred, c.Get(fiber.HeaderAcceptLanguage), s.DefaultLang)
}

// loadContent fetches translations/{lang} through the client's shell, so a
// failed fetch keeps whatever bundle the visitor last saw.
func (s *Site) loadContent(c fiber.Ctx) (string, view.ShellState) {
	lang := s.language(c)
	shell := s.shells.get(middleware.GetClientID(c), lang)

	ticket := shell.Switch(lang)
	b, err := service.OrEmpty(s.Translations.FetchBundle(c.Context(), lang))
	shell.Resolve(ticket, b, err)

	return lang, shell.State()
}

func (s *Site) layout(c fiber.Ctx, title, lang string, content view.ShellState) fiber.Map {
	return fiber.Map{
		"Title":        title,
		"Lang":         lang,
		"Nav":          view.NewNavbar(sessionState(c), content.Bundle.Section("nav"), lang),
		"ContentError": errorMessage(content.Err),
		"Path":         c.Path(),
		"Year":         time.Now().Year(),
	}
}

// baseURL prefers the configured public address over the request host.
func (s *Site) baseURL(c fiber.Ctx) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return c.BaseURL()
}

func (s *Site) audit(c fiber.Ctx, userID, action, resource, resourceID, details string) {
	if userID == "" {
		userID = "anonymous"
	}
	middleware.EmitAudit(s.AuditWriter, s.lggr, domain.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
}

func sessionState(c fiber.Ctx) domain.SessionState {
	if s := middleware.GetSession(c); s != nil {
		return s.State()
	}
	return domain.SessionState{}
}

// errorMessage returns the user-facing text of err, or "".
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *port.Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "Something went wrong. Please try again."
}

// ErrorHandler renders unhandled errors as JSON under /api and as plain text
// elsewhere. 5xx details are logged, not shown.
func ErrorHandler(lggr logger.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal Server Error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			lggr.Errorw("request failed", "path", c.Path(), "status", code, "err", err)
			msg = "Internal Server Error"
		}

		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(code).JSON(fiber.Map{"error": msg})
		}
		return c.Status(code).SendString(msg)
	}
}
