package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Writer stores a content node at path.
type Writer interface {
	PutContent(ctx context.Context, path string, value json.RawMessage) error
}

// DecodeYAML reads a document whose top-level keys are content paths
// ("translations/en", "login/hi") and returns each subtree as JSON.
func DecodeYAML(r io.Reader) (map[string]json.RawMessage, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode content yaml: %w", err)
	}

	nodes := make(map[string]json.RawMessage, len(doc))
	for path, tree := range doc {
		if _, err := cleanPath(path); err != nil {
			return nil, fmt.Errorf("content path %q: %w", path, err)
		}
		if _, ok := tree.(map[string]any); !ok {
			return nil, fmt.Errorf("content path %q: value must be a mapping", path)
		}
		raw, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("content path %q: %w", path, err)
		}
		nodes[path] = raw
	}
	return nodes, nil
}

// Import writes every node in path order and returns the paths written.
func Import(ctx context.Context, w Writer, nodes map[string]json.RawMessage) ([]string, error) {
	paths := make([]string, 0, len(nodes))
	for p := range nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for i, p := range paths {
		if err := w.PutContent(ctx, p, nodes[p]); err != nil {
			return paths[:i], fmt.Errorf("put %s: %w", p, err)
		}
	}
	return paths, nil
}
