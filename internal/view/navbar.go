// Package view builds the page view models. Every builder is a pure function
// of session state, a content bundle and local form state; templates render
// the result and forms post the outbound actions back to the handlers.
package view

import (
	"github.com/arturoeanton/godsplan/internal/domain"
)

// Brand is the site name shown in the navbar.
const Brand = "God's Plan"

// LanguageToggle describes the en/hi switch.
type LanguageToggle struct {
	Target      string
	Label       string
	ShortLabel  string
	MobileLabel string
	AriaLabel   string
}

// NavUser is the signed-in profile menu.
type NavUser struct {
	Initial  string
	Name     string
	Email    string
	PhotoURL string
}

// Navbar is the navigation bar view model.
type Navbar struct {
	Brand         string
	Lang          string
	Menu          string
	Features      string
	GetStarted    string
	Contact       string
	Logout        string
	LoginURL      string
	ContactURL    string
	Toggle        LanguageToggle
	Authenticated bool
	Loading       bool
	User          *NavUser
}

// NewNavbar builds the navbar from the session and the "nav" section of the
// translations bundle.
func NewNavbar(state domain.SessionState, nav domain.Bundle, lang string) Navbar {
	n := Navbar{
		Brand:      Brand,
		Lang:       lang,
		Menu:       nav.TextOr("Menu", "menu"),
		Features:   nav.TextOr("Features", "features"),
		GetStarted: nav.TextOr("Get Started", "getStarted"),
		Contact:    nav.TextOr("Contact", "contact"),
		Logout:     nav.TextOr("Logout", "logout"),
		LoginURL:   "/login",
		ContactURL: "/contact",
		Toggle:     languageToggle(lang),
		Loading:    state.Loading,
	}
	if state.Authenticated && state.Identity != nil {
		id := state.Identity
		n.Authenticated = true
		n.User = &NavUser{
			Initial:  id.Initial(),
			Name:     id.DisplayName,
			Email:    id.Email,
			PhotoURL: id.PhotoURL,
		}
	}
	return n
}

func languageToggle(lang string) LanguageToggle {
	if lang == domain.LangHindi {
		return LanguageToggle{
			Target:      domain.LangEnglish,
			Label:       "English",
			ShortLabel:  "EN",
			MobileLabel: "View in English",
			AriaLabel:   "अंग्रेजी में बदलें",
		}
	}
	return LanguageToggle{
		Target:      domain.LangHindi,
		Label:       "हिंदी",
		ShortLabel:  "HI",
		MobileLabel: "हिंदी में देखें",
		AriaLabel:   "Switch to Hindi",
	}
}
