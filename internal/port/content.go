package port

import (
	"context"
	"encoding/json"
)

// ContentStore reads nodes of the hierarchical content tree, addressed by
// slash-separated paths such as "translations/en" or "login/hi".
type ContentStore interface {
	// Get returns the node's JSON. ok is false when the node does not exist.
	Get(ctx context.Context, path string) (raw json.RawMessage, ok bool, err error)
}

// CacheStats reports content cache effectiveness.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// CacheStatsReporter is implemented by caching content stores.
type CacheStatsReporter interface {
	Stats() CacheStats
}

// EmailDispatcher sends a transactional email template with named parameters.
type EmailDispatcher interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}
