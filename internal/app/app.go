// Package app wires configuration into adapters, services and the Fiber app.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/godsplan/internal/adapter/auth"
	"github.com/arturoeanton/godsplan/internal/adapter/content"
	"github.com/arturoeanton/godsplan/internal/adapter/email"
	"github.com/arturoeanton/godsplan/internal/adapter/events"
	"github.com/arturoeanton/godsplan/internal/adapter/storage"
	"github.com/arturoeanton/godsplan/internal/adapter/store"
	"github.com/arturoeanton/godsplan/internal/handler"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/middleware"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/service"
	"github.com/arturoeanton/godsplan/pkg/config"
	"github.com/arturoeanton/godsplan/web"
)

const (
	contentCacheSize   = 256
	linkPurgeInterval  = time.Hour
	serverReadTimeout  = 30 * time.Second
	serverWriteTimeout = 30 * time.Second
)

// App is the running site plus the resources it must release.
type App struct {
	cfg     *config.Config
	lggr    logger.Logger
	fiber   *fiber.App
	pg      *store.PostgresStore
	closers []func() error
}

// New builds every adapter selected by cfg. On error, anything already
// opened is closed.
func New(cfg *config.Config, lggr logger.Logger) (*App, error) {
	a := &App{cfg: cfg, lggr: lggr.Named("app")}
	if err := a.build(lggr); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(lggr logger.Logger) error {
	cfg := a.cfg

	backend, err := a.clientStorage()
	if err != nil {
		return err
	}

	if cfg.DatabaseURL != "" {
		a.pg, err = store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.pg.Close)
	}

	var (
		users  port.UserDirectory
		ledger port.LinkLedger
		writer middleware.MultiAuditWriter
		reader handler.AuditReader
	)
	if a.pg != nil {
		users, ledger, reader = a.pg, a.pg, a.pg
		writer = append(writer, a.pg)
	} else {
		mem := store.NewMemoryStore()
		users, ledger, reader = mem, mem, mem
		writer = append(writer, mem)
	}
	if kw := events.NewKafkaAuditWriter(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic); kw != nil {
		writer = append(writer, kw)
		a.closers = append(a.closers, kw.Close)
	}

	contentStore, err := a.contentStore()
	if err != nil {
		return err
	}

	mailer := email.NewEmailJSClient(cfg.EmailJSServiceID, cfg.EmailJSPublicKey, cfg.EmailJSPrivateKey, cfg.EmailJSBaseURL)

	gateway := service.NewAuthGateway(service.AuthDeps{
		Providers:        a.providers(),
		Users:            users,
		Links:            auth.NewLinkTokens(cfg.LinkSecret, cfg.LinkIssuer, cfg.LinkLifetime()),
		Ledger:           ledger,
		Mailer:           mailer,
		SignInTemplateID: cfg.EmailJSSignInTemplateID,
	}, lggr)

	cacheStats, _ := contentStore.(port.CacheStatsReporter)

	site := handler.NewSite(handler.SiteDeps{
		Auth:             gateway,
		Translations:     service.NewTranslationLoader(contentStore, lggr),
		Contact:          service.NewContactService(mailer, cfg.EmailJSContactTemplateID, lggr),
		Backend:          backend,
		AuditWriter:      writer,
		AuditReader:      reader,
		ContentCache:     cacheStats,
		IsAdmin:          cfg.IsAdmin,
		Logger:           lggr,
		AppName:          cfg.AppName,
		BaseURL:          cfg.BaseURL,
		DefaultLang:      cfg.DefaultLanguage,
		CookieSecure:     cfg.CookieSecure,
		ContactRateLimit: cfg.ContactRateLimit,
	})

	a.fiber = handler.NewApp(site, handler.AppConfig{
		Views:          web.Engine(),
		CORSOrigins:    cfg.CORSOriginsList(),
		RequestLogging: !cfg.IsProduction(),
		ReadTimeout:    serverReadTimeout,
		WriteTimeout:   serverWriteTimeout,
	})
	return nil
}

func (a *App) clientStorage() (port.StorageBackend, error) {
	switch a.cfg.StorageBackend {
	case config.BackendRedis:
		client, err := storage.NewRedisClient(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.lggr.Infow("client storage", "backend", config.BackendRedis, "addr", a.cfg.RedisAddr)
		return storage.NewRedisBackend(client, a.cfg.ClientStorageLifetime()), nil
	default:
		a.lggr.Infow("client storage", "backend", config.BackendMemory)
		return storage.NewMemoryBackend(), nil
	}
}

func (a *App) contentStore() (port.ContentStore, error) {
	var next port.ContentStore
	switch a.cfg.ContentBackend {
	case config.BackendPostgres:
		if a.pg == nil {
			return nil, errors.New("app: postgres content backend needs DATABASE_URL")
		}
		next = a.pg
	case config.BackendRTDB:
		next = content.NewRTDBStore(a.cfg.FirebaseDatabaseURL, a.cfg.FirebaseAuthToken)
	default:
		return nil, fmt.Errorf("app: unknown content backend %q", a.cfg.ContentBackend)
	}
	a.lggr.Infow("content store", "backend", a.cfg.ContentBackend, "cache_ttl", a.cfg.ContentCacheLifetime())
	return content.NewCachedStore(next, a.cfg.ContentCacheLifetime(), contentCacheSize), nil
}

// providers registers Google and GitHub only when their client IDs are set.
func (a *App) providers() port.AuthProviderRegistry {
	reg := port.AuthProviderRegistry{}
	if a.cfg.GoogleClientID != "" {
		reg["google"] = auth.NewGoogleProvider(a.cfg.GoogleClientID, a.cfg.GoogleClientSecret, a.cfg.GoogleRedirectURL)
	}
	if a.cfg.GitHubClientID != "" {
		reg["github"] = auth.NewGitHubProvider(a.cfg.GitHubClientID, a.cfg.GitHubClientSecret, a.cfg.GitHubRedirectURL)
	}
	if len(reg) == 0 {
		a.lggr.Warn("no federated providers configured, only email links are available")
	}
	return reg
}

// Handler exposes the Fiber app, mainly for tests.
func (a *App) Handler() *fiber.App {
	return a.fiber
}

// Run serves until ctx is cancelled, then drains in-flight requests for
// up to shutdownTimeout and releases every resource.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if a.pg != nil {
		go a.purgeLinkTokens(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.lggr.Infow("listening", "port", a.cfg.Port, "env", a.cfg.Env, "database", a.cfg.DSN())
		errCh <- a.fiber.Listen(":"+a.cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		_ = a.close()
		return err
	case <-ctx.Done():
	}

	a.lggr.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.fiber.ShutdownWithContext(shutdownCtx)
	return errors.Join(err, a.close())
}

// purgeLinkTokens drops expired rows from the consumed-link ledger.
func (a *App) purgeLinkTokens(ctx context.Context) {
	ticker := time.NewTicker(linkPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := a.pg.PurgeExpiredLinkTokens(ctx, now)
			if err != nil {
				a.lggr.Warnw("purge expired link tokens", "err", err)
				continue
			}
			if n > 0 {
				a.lggr.Debugw("purged expired link tokens", "count", n)
			}
		}
	}
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
