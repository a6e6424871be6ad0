package handler

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/port"
	"github.com/arturoeanton/godsplan/internal/service"
	"github.com/arturoeanton/godsplan/internal/view"
)

// PageHandler serves the landing and contact pages and the language toggle.
type PageHandler struct {
	site *Site
}

// NewPageHandler creates a new page handler.
func NewPageHandler(site *Site) *PageHandler {
	return &PageHandler{site: site}
}

// Register sets up page routes.
func (h *PageHandler) Register(app *fiber.App) {
	app.Get("/", h.Home)
	app.Get("/contact", h.ContactPage)
	if h.site.ContactRateLimit > 0 {
		app.Post("/contact", h.contactLimiter(h.site.ContactRateLimit), h.SubmitContact)
	} else {
		app.Post("/contact", h.SubmitContact)
	}
	app.Post("/language", h.SwitchLanguage)
}

// RegisterFallback must run after every other route.
func (h *PageHandler) RegisterFallback(app *fiber.App) {
	app.Use(h.NotFound)
}

// Home renders the landing page.
func (h *PageHandler) Home(c fiber.Ctx) error {
	lang, content := h.site.loadContent(c)

	landing := view.NewLanding(content.Bundle)
	if content.Bundle.Empty() {
		landing = view.LandingError(errorMessage(content.Err))
	}

	data := h.site.layout(c, view.Brand, lang, content)
	data["Landing"] = landing
	return c.Render("home", data)
}

// ContactPage renders the empty contact form.
func (h *PageHandler) ContactPage(c fiber.Ctx) error {
	return h.renderContact(c, fiber.StatusOK, view.ContactForm{})
}

// SubmitContact validates the form and dispatches it. Values are kept on
// failure and cleared on success.
func (h *PageHandler) SubmitContact(c fiber.Ctx) error {
	var msg domain.ContactMessage
	if err := c.Bind().Form(&msg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}

	err := h.site.Contact.Submit(c.Context(), msg)

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return h.renderContact(c, fiber.StatusUnprocessableEntity, view.ContactForm{
			Values:      msg,
			FieldErrors: verr.Fields,
		})
	case err != nil:
		status := fiber.StatusInternalServerError
		if _, ok := port.AsEmailDispatchError(err); ok {
			status = fiber.StatusBadGateway
		}
		return h.renderContact(c, status, view.ContactForm{
			Values:  msg,
			Status:  view.ContactError,
			Message: errorMessage(err),
		})
	}

	var userID string
	if id := sessionState(c).Identity; id != nil {
		userID = id.UID
	}
	details, _ := json.Marshal(map[string]any{"subject_len": len(strings.TrimSpace(msg.Subject))})
	h.site.audit(c, userID, domain.AuditActionContact, "contact", "", string(details))

	return h.renderContact(c, fiber.StatusOK, view.ContactForm{Status: view.ContactSuccess})
}

func (h *PageHandler) renderContact(c fiber.Ctx, status int, form view.ContactForm) error {
	lang, content := h.site.loadContent(c)
	data := h.site.layout(c, "Contact", lang, content)
	data["Contact"] = view.NewContact(content.Bundle, form)
	return c.Status(status).Render("contact", data)
}

func (h *PageHandler) contactLimiter(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c fiber.Ctx) error {
			var msg domain.ContactMessage
			_ = c.Bind().Form(&msg)
			return h.renderContact(c, fiber.StatusTooManyRequests, view.ContactForm{
				Values:  msg,
				Status:  view.ContactError,
				Message: "Too many messages. Please try again in a minute.",
			})
		},
	})
}

// SwitchLanguage stores the chosen language and returns to the page the
// visitor came from.
func (h *PageHandler) SwitchLanguage(c fiber.Ctx) error {
	lang := c.FormValue("lang")
	if !domain.IsSupportedLanguage(lang) {
		lang = domain.ToggleLanguage(h.site.language(c))
	}

	c.Cookie(&fiber.Cookie{
		Name:     langCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieAge.Seconds()),
		Secure:   h.site.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect().Status(fiber.StatusSeeOther).To(localPath(c.FormValue("next")))
}

// NotFound sends unknown API paths a JSON 404 and everything else home.
func (h *PageHandler) NotFound(c fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	return c.Redirect().Status(fiber.StatusFound).To("/")
}

// localPath accepts only same-site absolute paths, defaulting to "/".
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}
