package middleware

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// MultiAuditWriter fans a record out to every writer and joins their errors.
type MultiAuditWriter []AuditWriter

// WriteAudit implements AuditWriter.
func (m MultiAuditWriter) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	var errs []error
	for _, w := range m {
		if w == nil {
			continue
		}
		if err := w.WriteAudit(userID, action, resource, resourceID, details, ip, userAgent); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditMiddleware records every page and API request.
func AuditMiddleware(writer AuditWriter, lggr logger.Logger) fiber.Handler {
	lggr = lggr.Named("audit")
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses context objects, so capture before the handler runs.
		method := c.Method()
		path := strings.Clone(c.Path())
		ip := c.IP()
		userAgent := strings.Clone(c.Get(fiber.HeaderUserAgent))

		err := c.Next()

		// Read after the handler so sign-ins and sign-outs are attributed.
		userID := "anonymous"
		if id := CurrentIdentity(c); id != nil {
			userID = id.UID
		}

		resource := "page"
		if strings.HasPrefix(path, "/api/") {
			resource = "api"
		}

		details, _ := json.Marshal(map[string]any{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		})

		EmitAudit(writer, lggr, domain.AuditLog{
			UserID:     userID,
			Action:     domain.AuditActionHTTPRequest,
			Resource:   resource,
			ResourceID: path,
			Details:    string(details),
			IP:         ip,
			UserAgent:  userAgent,
		})

		return err
	}
}

// EmitAudit writes entry in the background. Failures are logged, never
// returned: auditing must not fail the request. Fields are copied first
// since values read from a fiber.Ctx are only valid inside the handler.
func EmitAudit(writer AuditWriter, lggr logger.Logger, entry domain.AuditLog) {
	if writer == nil {
		return
	}
	entry.UserID = strings.Clone(entry.UserID)
	entry.Action = strings.Clone(entry.Action)
	entry.Resource = strings.Clone(entry.Resource)
	entry.ResourceID = strings.Clone(entry.ResourceID)
	entry.Details = strings.Clone(entry.Details)
	entry.IP = strings.Clone(entry.IP)
	entry.UserAgent = strings.Clone(entry.UserAgent)
	go func() {
		if err := writer.WriteAudit(
			entry.UserID,
			entry.Action,
			entry.Resource,
			entry.ResourceID,
			entry.Details,
			entry.IP,
			entry.UserAgent,
		); err != nil {
			lggr.Errorw("failed to write audit log", "action", entry.Action, "err", err)
		}
	}()
}
