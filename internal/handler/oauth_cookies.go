package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	oauthCookieTTL  = 10 * time.Minute
	oauthCookiePath = "/auth"
)

func (h *AuthHandler) setOAuthCookie(c fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     oauthCookiePath,
		HTTPOnly: true,
		Secure:   h.site.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   int(oauthCookieTTL.Seconds()),
	})
}

// clearOAuthCookies expires both flow cookies; they are single use.
func (h *AuthHandler) clearOAuthCookies(c fiber.Ctx) {
	for _, name := range []string{stateCookieName, pkceCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     oauthCookiePath,
			HTTPOnly: true,
			Secure:   h.site.CookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
}
