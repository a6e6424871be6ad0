package handler

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arturoeanton/godsplan/internal/view"
)

const defaultMaxShells = 10000

// shellRegistry keeps one view.Shell per client. When full, the least
// recently seen client is evicted.
type shellRegistry struct {
	cache *lru.Cache[string, *view.Shell]
}

func newShellRegistry(max int) *shellRegistry {
	if max <= 0 {
		max = defaultMaxShells
	}
	cache, _ := lru.New[string, *view.Shell](max) // only fails for max <= 0
	return &shellRegistry{cache: cache}
}

func (r *shellRegistry) get(clientID, lang string) *view.Shell {
	if clientID == "" {
		return view.NewShell(lang)
	}
	if s, ok := r.cache.Get(clientID); ok {
		return s
	}
	// Racing first requests from one client may both create a shell; the
	// first stored wins.
	s := view.NewShell(lang)
	if prev, ok, _ := r.cache.PeekOrAdd(clientID, s); ok {
		return prev
	}
	return s
}

func (r *shellRegistry) size() int {
	return r.cache.Len()
}
