package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/godsplan/internal/domain"
)

const maxAuditPage = 500

// AuditReader lists recorded audit entries, newest first.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store AuditReader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store AuditReader) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes behind guard.
func (h *AuditHandler) Register(router fiber.Router, guard fiber.Handler) {
	audit := router.Group("/audit")
	if guard != nil {
		audit.Use(guard)
	}
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
