package domain

import "fmt"

// Supported content languages.
const (
	LangEnglish = "en"
	LangHindi   = "hi"
)

// SupportedLanguages lists the languages the content store is keyed by.
var SupportedLanguages = []string{LangEnglish, LangHindi}

// IsSupportedLanguage reports whether lang has a content node.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// ToggleLanguage returns the language the navbar switch leads to.
func ToggleLanguage(lang string) string {
	if lang == LangHindi {
		return LangEnglish
	}
	return LangHindi
}

// Bundle is a language-scoped content tree. Values are strings, nested
// bundles or lists. Lookups on missing keys yield zero values.
type Bundle map[string]any

// Text walks path and returns the string found there, or "".
func (b Bundle) Text(path ...string) string {
	return b.TextOr("", path...)
}

// TextOr is Text with a fallback for missing or non-string values.
func (b Bundle) TextOr(fallback string, path ...string) string {
	if len(path) == 0 {
		return fallback
	}
	cur := b
	for _, key := range path[:len(path)-1] {
		cur = cur.Section(key)
	}
	switch v := cur[path[len(path)-1]].(type) {
	case string:
		if v == "" {
			return fallback
		}
		return v
	case float64, int, bool:
		return fmt.Sprint(v)
	default:
		return fallback
	}
}

// Section returns the nested bundle under key, or an empty bundle.
func (b Bundle) Section(key string) Bundle {
	switch v := b[key].(type) {
	case Bundle:
		return v
	case map[string]any:
		return Bundle(v)
	default:
		return Bundle{}
	}
}

// Items returns the list under key as bundles. Non-object entries are skipped.
func (b Bundle) Items(key string) []Bundle {
	raw, ok := b[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Bundle, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, Bundle(v))
		case Bundle:
			out = append(out, v)
		}
	}
	return out
}

// Empty reports whether the bundle has no keys.
func (b Bundle) Empty() bool {
	return len(b) == 0
}
