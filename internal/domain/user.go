package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Sign-in mechanisms that can produce an Identity.
const (
	ProviderGoogle    = "google"
	ProviderGitHub    = "github"
	ProviderEmailLink = "emailLink"
)

// User is the persisted account row. One row per (provider, provider_id).
type User struct {
	ID         string    `json:"id"          db:"id"`
	Email      string    `json:"email"       db:"email"`
	Name       string    `json:"name"        db:"name"`
	AvatarURL  string    `json:"avatar_url"  db:"avatar_url"`
	Provider   string    `json:"provider"    db:"provider"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	Role       string    `json:"role"        db:"role"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// Identity converts the account row into the canonical record handed to the session.
func (u *User) Identity() Identity {
	return NewIdentity(u.ID, u.Email, u.Name, u.AvatarURL, u.Provider)
}

// Identity is the canonical shape of an authenticated user, independent of
// the mechanism that produced it. The JSON form is what gets persisted under
// the "user" storage key.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// NewIdentity builds an Identity, defaulting the display name to the local
// part of the email address.
func NewIdentity(uid, email, displayName, photoURL, provider string) Identity {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = EmailLocalPart(email)
	}
	return Identity{
		UID:         uid,
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		Provider:    provider,
	}
}

// Valid reports whether the identity carries an identifier.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.UID) != ""
}

// Initial returns the avatar letter: first rune of the display name, or of the
// email when there is no display name, uppercased.
func (i Identity) Initial() string {
	src := strings.TrimSpace(i.DisplayName)
	if src == "" {
		src = strings.TrimSpace(i.Email)
	}
	if src == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(src)
	return string(unicode.ToUpper(r))
}

// EmailLocalPart returns everything before the '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return local
}
