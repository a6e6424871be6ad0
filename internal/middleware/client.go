package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/session"
)

// DefaultClientCookie names the cookie that identifies a browser client.
const DefaultClientCookie = "gp_client"

const (
	localsClientID = "client_id"
	localsStorage  = "client_storage"
	localsSession  = "session"
)

// ClientConfig holds client session middleware configuration.
type ClientConfig struct {
	Backend        port.StorageBackend
	Logger         logger.Logger
	CookieName     string
	CookieSecure   bool
	CookieMaxAge   time.Duration
	RestoreTimeout time.Duration
}

// ClientSession identifies the browser by its client cookie, minting one on
// first visit, and restores that client's session store before the handler
// runs. Handlers reach both through GetSession and GetStorage.
func ClientSession(cfg ClientConfig) fiber.Handler {
	name := cfg.CookieName
	if name == "" {
		name = DefaultClientCookie
	}
	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	lggr := cfg.Logger

	return func(c fiber.Ctx) error {
		clientID := c.Cookies(name)
		if _, err := uuid.Parse(clientID); err != nil {
			clientID = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     name,
				Value:    clientID,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HTTPOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		storage := cfg.Backend.Scope(clientID)
		store := session.NewStore(storage, lggr, session.WithRestoreTimeout(cfg.RestoreTimeout))
		store.Restore(c.Context())

		c.Locals(localsClientID, clientID)
		c.Locals(localsStorage, storage)
		c.Locals(localsSession, store)

		return c.Next()
	}
}

// GetSession extracts the client's session store from Fiber locals.
func GetSession(c fiber.Ctx) *session.Store {
	s, ok := c.Locals(localsSession).(*session.Store)
	if !ok {
		return nil
	}
	return s
}

// GetStorage extracts the client's durable storage from Fiber locals.
func GetStorage(c fiber.Ctx) port.LocalStorage {
	s, ok := c.Locals(localsStorage).(port.LocalStorage)
	if !ok {
		return nil
	}
	return s
}

// GetClientID returns the client cookie value, or "".
func GetClientID(c fiber.Ctx) string {
	id, _ := c.Locals(localsClientID).(string)
	return id
}

// CurrentIdentity returns the signed-in identity, or nil.
func CurrentIdentity(c fiber.Ctx) *domain.Identity {
	if s := GetSession(c); s != nil {
		return s.Current()
	}
	return nil
}

// RequireAdmin rejects requests whose signed-in email isAdmin does not accept.
func RequireAdmin(isAdmin func(email string) bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := CurrentIdentity(c)
		if id == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not signed in",
			})
		}
		if !isAdmin(id.Email) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}
		return c.Next()
	}
}
