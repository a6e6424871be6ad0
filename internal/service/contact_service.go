package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/port"
)

// ValidationError lists the contact form fields that failed validation.
type ValidationError struct {
	Fields domain.FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// ContactService forwards contact form submissions to the email dispatcher.
type ContactService struct {
	mailer     port.EmailDispatcher
	templateID string
	lggr       logger.Logger
}

// NewContactService creates the service.
func NewContactService(mailer port.EmailDispatcher, templateID string, lggr logger.Logger) *ContactService {
	return &ContactService{mailer: mailer, templateID: templateID, lggr: lggr.Named("contact")}
}

// Submit validates msg and sends it once. Invalid input yields a
// *ValidationError without dispatching; send failures an EmailDispatchError.
func (s *ContactService) Submit(ctx context.Context, msg domain.ContactMessage) error {
	msg = msg.Normalize()
	if fields := msg.Validate(); fields != nil {
		return &ValidationError{Fields: fields}
	}

	if err := s.mailer.Send(ctx, s.templateID, msg.TemplateParams()); err != nil {
		s.lggr.Errorw("contact dispatch failed", "err", err)
		return port.NewEmailDispatchError(port.CodeDispatchFailed,
			"Failed to send message. Please try again.", fmt.Errorf("send contact: %w", err))
	}

	s.lggr.Infow("contact message sent", "subject_len", len(msg.Subject))
	return nil
}
