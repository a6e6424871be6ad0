package domain

import (
	"net/mail"
	"strings"
)

// ContactMessage is a submission of the contact form. All fields are required.
type ContactMessage struct {
	Name    string `json:"name"    form:"name"`
	Email   string `json:"email"   form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

// Normalize trims surrounding whitespace from every field.
func (m ContactMessage) Normalize() ContactMessage {
	return ContactMessage{
		Name:    strings.TrimSpace(m.Name),
		Email:   strings.TrimSpace(m.Email),
		Subject: strings.TrimSpace(m.Subject),
		Message: strings.TrimSpace(m.Message),
	}
}

// Validate returns the missing or malformed fields, or nil.
func (m ContactMessage) Validate() FieldErrors {
	errs := FieldErrors{}
	if m.Name == "" {
		errs["name"] = "required"
	}
	if m.Email == "" {
		errs["email"] = "required"
	} else if !ValidEmail(m.Email) {
		errs["email"] = "invalid"
	}
	if m.Subject == "" {
		errs["subject"] = "required"
	}
	if m.Message == "" {
		errs["message"] = "required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// TemplateParams returns the named parameters sent to the email template.
func (m ContactMessage) TemplateParams() map[string]string {
	return map[string]string{
		"from_name":  m.Name,
		"from_email": m.Email,
		"subject":    m.Subject,
		"message":    m.Message,
	}
}

// ValidEmail accepts a bare address (no display name) with a domain part.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domainPart, ok := strings.Cut(s, "@")
	return ok && domainPart != ""
}
