package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/port"
)

// APIHandler serves the JSON surface: health, session and raw bundles.
type APIHandler struct {
	site *Site
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(site *Site) *APIHandler {
	return &APIHandler{site: site}
}

// Register sets up API routes under router.
func (h *APIHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/session", h.Session)
	router.Get("/translations/:lang", h.Translations)
	router.Get("/translations/:lang/login", h.LoginTranslations)
}

// Health reports liveness and, when content is cached, the cache counters.
func (h *APIHandler) Health(c fiber.Ctx) error {
	out := fiber.Map{
		"status":  "healthy",
		"app":     h.site.AppName,
		"version": h.site.Version,
	}
	if h.site.ContentCache != nil {
		out["contentCache"] = h.site.ContentCache.Stats()
	}
	return c.JSON(out)
}

// Session returns the caller's session snapshot.
func (h *APIHandler) Session(c fiber.Ctx) error {
	return c.JSON(sessionState(c))
}

// Translations returns translations/{lang}.
func (h *APIHandler) Translations(c fiber.Ctx) error {
	return h.bundle(c, h.site.Translations.FetchBundle)
}

// LoginTranslations returns login/{lang}.
func (h *APIHandler) LoginTranslations(c fiber.Ctx) error {
	return h.bundle(c, h.site.Translations.FetchLoginBundle)
}

func (h *APIHandler) bundle(c fiber.Ctx, fetch func(context.Context, string) (domain.Bundle, error)) error {
	b, err := fetch(c.Context(), c.Params("lang"))
	if err != nil {
		pe, ok := port.AsTranslationFetchError(err)
		if !ok {
			return err
		}
		status := fiber.StatusBadGateway
		switch pe.Code {
		case port.CodeNotFound:
			status = fiber.StatusNotFound
		case port.CodeUnavailable:
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{"error": pe.Message, "code": pe.Code})
	}
	return c.JSON(b)
}
