// Package content reads the hierarchical site content tree.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// RTDBStore reads nodes through the Firebase Realtime Database REST API:
// GET {BaseURL}/{path}.json. A JSON null body means the node does not exist.
type RTDBStore struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewRTDBStore returns a store for the database at baseURL
// (e.g. https://project-default-rtdb.firebaseio.com). authToken is optional.
func NewRTDBStore(baseURL, authToken string) *RTDBStore {
	return &RTDBStore{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Get implements port.ContentStore.
func (s *RTDBStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return nil, false, err
	}

	endpoint := s.BaseURL + "/" + clean + ".json"
	u := endpoint
	if s.AuthToken != "" {
		u += "?" + url.Values{"auth": {s.AuthToken}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("rtdb: create request: %w", redactURL(err, endpoint))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("rtdb: get %s: %w", clean, redactURL(err, endpoint))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("rtdb: read %s: %w", clean, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("rtdb: get %s failed status=%d body=%s", clean, resp.StatusCode, string(body))
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, false, nil
	}
	if !json.Valid(body) {
		return nil, false, fmt.Errorf("rtdb: get %s: response is not JSON", clean)
	}
	return json.RawMessage(body), true, nil
}

// redactURL replaces the URL carried by a *url.Error, which would otherwise
// print the auth query parameter.
func redactURL(err error, endpoint string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = endpoint
	}
	return err
}

// cleanPath normalizes "/translations/en/" to "translations/en" and rejects
// segments that could escape the tree.
func cleanPath(path string) (string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, "?#$[]") {
			return "", fmt.Errorf("content: invalid path %q", path)
		}
	}
	return strings.Join(parts, "/"), nil
}
