package service

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/text/language"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/port"
)

// Content tree roots.
const (
	RootTranslations = "translations"
	RootLogin        = "login"
)

// TranslationLoader fetches language-scoped content bundles. Each call reads
// the store; caching, if any, belongs to the store.
type TranslationLoader struct {
	store port.ContentStore
	lggr  logger.Logger
}

// NewTranslationLoader creates a loader over store.
func NewTranslationLoader(store port.ContentStore, lggr logger.Logger) *TranslationLoader {
	return &TranslationLoader{store: store, lggr: lggr.Named("translations")}
}

// FetchBundle returns translations/{lang}.
func (l *TranslationLoader) FetchBundle(ctx context.Context, lang string) (domain.Bundle, error) {
	return l.fetch(ctx, RootTranslations, lang)
}

// FetchLoginBundle returns login/{lang}, the login screen's own node.
func (l *TranslationLoader) FetchLoginBundle(ctx context.Context, lang string) (domain.Bundle, error) {
	return l.fetch(ctx, RootLogin, lang)
}

func (l *TranslationLoader) fetch(ctx context.Context, root, lang string) (domain.Bundle, error) {
	if !domain.IsSupportedLanguage(lang) {
		return nil, port.NewTranslationFetchError(port.CodeNotFound, "No content for language "+lang+".", nil)
	}
	path := root + "/" + lang

	raw, ok, err := l.store.Get(ctx, path)
	if err != nil {
		l.lggr.Warnw("content fetch failed", "path", path, "err", err)
		return nil, port.NewTranslationFetchError(port.CodeUnavailable, "Failed to load content.", err)
	}
	if !ok {
		return nil, port.NewTranslationFetchError(port.CodeNotFound, "No content for language "+lang+".", nil)
	}

	var b domain.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		l.lggr.Warnw("content node is not an object", "path", path, "err", err)
		return nil, port.NewTranslationFetchError(port.CodeMalformed, "Failed to load content.", err)
	}
	if b == nil {
		b = domain.Bundle{}
	}
	return b, nil
}

// OrEmpty turns a not-found result into an empty bundle and nil error; other
// failures pass through.
func OrEmpty(b domain.Bundle, err error) (domain.Bundle, error) {
	if errors.Is(err, port.ErrBundleNotFound) {
		return domain.Bundle{}, nil
	}
	if err != nil {
		return domain.Bundle{}, err
	}
	return b, nil
}

var languageMatcher = language.NewMatcher([]language.Tag{language.English, language.Hindi})

// NegotiateLanguage picks the content language: an explicit supported
// preference wins, then the Accept-Language header, then fallback.
func NegotiateLanguage(preferred, acceptLanguage, fallback string) string {
	if domain.IsSupportedLanguage(preferred) {
		return preferred
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return domain.SupportedLanguages[idx]
}
