package view

import (
	"github.com/arturoeanton/godsplan/internal/domain"
)

// Hero is the landing page's top section.
type Hero struct {
	Tagline         string
	Title           string
	Description     string
	StartTrial      string
	ExploreFeatures string
	TrustedBy       string
}

// Feature is one card of the features grid.
type Feature struct {
	Title       string
	Description string
}

// Landing is the home page view model.
type Landing struct {
	Hero             Hero
	FeaturesTitle    string
	FeaturesSubtitle string
	Features         []Feature
	// Error is set when content could not be loaded; the page offers a retry.
	Error string
}

// NewLanding builds the landing page from the translations bundle.
func NewLanding(b domain.Bundle) Landing {
	hero := b.Section("hero")
	l := Landing{
		Hero: Hero{
			Tagline:         hero.Text("tagline"),
			Title:           hero.Text("title"),
			Description:     hero.Text("description"),
			StartTrial:      hero.Text("startTrial"),
			ExploreFeatures: hero.Text("exploreFeatures"),
			TrustedBy:       hero.Text("trustedBy"),
		},
		FeaturesTitle:    b.Text("featuresTitle"),
		FeaturesSubtitle: b.Text("featuresSubtitle"),
	}
	for _, f := range b.Items("features") {
		l.Features = append(l.Features, Feature{
			Title:       f.Text("title"),
			Description: f.Text("description"),
		})
	}
	return l
}

// LandingError is the landing page shown when content failed to load.
func LandingError(message string) Landing {
	if message == "" {
		message = "Failed to load content."
	}
	return Landing{Error: message}
}

// LoginLabels are the login screen strings.
type LoginLabels struct {
	Welcome          string
	SignInPrompt     string
	SignInWithGoogle string
	SignInWithGitHub string
	OrContinueWith   string
	EmailAddress     string
	EmailPlaceholder string
	LinkSentMessage  string
	SendSignInLink   string
	EmailRequired    string
	EmailPrompt      string
	Confirm          string
}

// LoginState is the local interaction state of the login screen.
type LoginState struct {
	Email string
	Sent  bool
	Error string
	// EmailMissing shows the emailRequired label as the error.
	EmailMissing bool
	// NeedsEmail asks the visitor to confirm the address a link was sent to.
	NeedsEmail bool
	// CompleteURL is the sign-in link being redeemed when NeedsEmail is set.
	CompleteURL string
	Providers   []string
}

// Login is the login page view model.
type Login struct {
	Labels LoginLabels
	State  LoginState
	// FormDisabled is set once a link was sent, so the form cannot resubmit.
	FormDisabled bool
	Google       bool
	GitHub       bool
}

// NewLogin builds the login screen from the login/{lang} bundle. Missing
// labels fall back to English.
func NewLogin(b domain.Bundle, st LoginState) Login {
	l := Login{
		Labels: LoginLabels{
			Welcome:          b.TextOr("Welcome", "welcome"),
			SignInPrompt:     b.TextOr("Sign in to continue", "signInPrompt"),
			SignInWithGoogle: b.TextOr("Sign in with Google", "signInWithGoogle"),
			SignInWithGitHub: b.TextOr("Sign in with GitHub", "signInWithGitHub"),
			OrContinueWith:   b.TextOr("Or continue with", "orContinueWith"),
			EmailAddress:     b.TextOr("Email address", "emailAddress"),
			EmailPlaceholder: b.TextOr("you@example.com", "emailPlaceholder"),
			LinkSentMessage:  b.TextOr("Check your inbox for the sign-in link.", "linkSentMessage"),
			SendSignInLink:   b.TextOr("Send sign-in link", "sendSignInLink"),
			EmailRequired:    b.TextOr("Please enter your email address.", "emailRequired"),
			EmailPrompt:      b.TextOr("Please provide your email for confirmation", "emailPrompt"),
			Confirm:          b.TextOr("Continue", "confirm"),
		},
		FormDisabled: st.Sent,
	}
	if st.EmailMissing && st.Error == "" {
		st.Error = l.Labels.EmailRequired
	}
	l.State = st
	for _, p := range st.Providers {
		switch p {
		case domain.ProviderGoogle:
			l.Google = true
		case domain.ProviderGitHub:
			l.GitHub = true
		}
	}
	return l
}

// ContactLabels are the contact form strings.
type ContactLabels struct {
	Title              string
	Name               string
	NamePlaceholder    string
	Email              string
	EmailPlaceholder   string
	Subject            string
	SubjectPlaceholder string
	Message            string
	MessagePlaceholder string
	Send               string
	Success            string
	Failure            string
	Required           string
	InvalidEmail       string
}

// Contact status values.
const (
	ContactIdle    = ""
	ContactSuccess = "success"
	ContactError   = "error"
)

// ContactForm is the contact page's local state: the values to re-display
// and the outcome of the last submission, if any.
type ContactForm struct {
	Values      domain.ContactMessage
	FieldErrors domain.FieldErrors
	Status      string
	Message     string
}

// Contact is the contact page view model.
type Contact struct {
	Labels      ContactLabels
	Form        domain.ContactMessage
	FieldErrors domain.FieldErrors
	Status      string
	Message     string
}

// NewContact builds the contact page. Labels fall back to English.
func NewContact(b domain.Bundle, form ContactForm) Contact {
	status, message := form.Status, form.Message
	c := b.Section("contact")
	labels := ContactLabels{
		Title:              c.TextOr("Send us a Message", "title"),
		Name:               c.TextOr("Full Name", "name"),
		NamePlaceholder:    c.TextOr("Bharat Sharma", "namePlaceholder"),
		Email:              c.TextOr("Email Address", "email"),
		EmailPlaceholder:   c.TextOr("example@gmail.com", "emailPlaceholder"),
		Subject:            c.TextOr("Subject", "subject"),
		SubjectPlaceholder: c.TextOr("How can we help you?", "subjectPlaceholder"),
		Message:            c.TextOr("Message", "message"),
		MessagePlaceholder: c.TextOr("Type your message here...", "messagePlaceholder"),
		Send:               c.TextOr("Send Message", "send"),
		Success:            c.TextOr("Thank you! Your message has been sent.", "success"),
		Failure:            c.TextOr("Failed to send message. Please try again.", "failure"),
		Required:           c.TextOr("This field is required.", "required"),
		InvalidEmail:       c.TextOr("Please enter a valid email address.", "invalidEmail"),
	}
	if status == ContactSuccess && message == "" {
		message = labels.Success
	}
	if status == ContactError && message == "" {
		message = labels.Failure
	}
	return Contact{
		Labels:      labels,
		Form:        form.Values,
		FieldErrors: form.FieldErrors,
		Status:      status,
		Message:     message,
	}
}

// FieldMessage returns the error text to show under field, or "".
func (c Contact) FieldMessage(field string) string {
	switch c.FieldErrors[field] {
	case "":
		return ""
	case "invalid":
		return c.Labels.InvalidEmail
	default:
		return c.Labels.Required
	}
}
