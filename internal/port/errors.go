package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBundleNotFound  = errors.New("content bundle not found")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrLinkExpired     = errors.New("sign-in link expired")
	ErrLinkInvalid     = errors.New("sign-in link invalid")
)

// Kind discriminates the failures surfaced to the user.
type Kind string

const (
	KindAuth             Kind = "auth"
	KindTranslationFetch Kind = "translation_fetch"
	KindEmailDispatch    Kind = "email_dispatch"
)

// Machine-readable failure codes carried by Error.
const (
	CodeCancelled       = "cancelled"
	CodeProvider        = "provider_error"
	CodeUnknownProvider = "unknown_provider"
	CodeInvalidEmail    = "invalid_email"
	CodeInvalidURL      = "invalid_url"
	CodeEmailRequired   = "email_required"
	CodeInvalidLink     = "invalid_link"
	CodeExpiredLink     = "expired_link"
	CodeEmailMismatch   = "email_mismatch"
	CodeNotFound        = "not_found"
	CodeUnavailable     = "unavailable"
	CodeMalformed       = "malformed"
	CodeDispatchFailed  = "dispatch_failed"
	CodeNotConfigured   = "not_configured"
)

// Error is the closed set of user-facing failures. Message is safe to show
// inline; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBundleNotFound) match a not-found fetch.
func (e *Error) Is(target error) bool {
	return target == ErrBundleNotFound && e.Kind == KindTranslationFetch && e.Code == CodeNotFound
}

// NewAuthError builds a KindAuth error.
func NewAuthError(code, message string, cause error) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message, Err: cause}
}

// NewTranslationFetchError builds a KindTranslationFetch error.
func NewTranslationFetchError(code, message string, cause error) *Error {
	return &Error{Kind: KindTranslationFetch, Code: code, Message: message, Err: cause}
}

// NewEmailDispatchError builds a KindEmailDispatch error.
func NewEmailDispatchError(code, message string, cause error) *Error {
	return &Error{Kind: KindEmailDispatch, Code: code, Message: message, Err: cause}
}

// AsKind returns the *Error in err's chain when it has the given kind.
func AsKind(err error, kind Kind) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return e, true
	}
	return nil, false
}

// AsAuthError is AsKind(err, KindAuth).
func AsAuthError(err error) (*Error, bool) { return AsKind(err, KindAuth) }

// AsTranslationFetchError is AsKind(err, KindTranslationFetch).
func AsTranslationFetchError(err error) (*Error, bool) { return AsKind(err, KindTranslationFetch) }

// AsEmailDispatchError is AsKind(err, KindEmailDispatch).
func AsEmailDispatchError(err error) (*Error, bool) { return AsKind(err, KindEmailDispatch) }
