// Package email sends transactional mail through EmailJS.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.emailjs.com"
	defaultTimeout = 15 * time.Second
	sendPath       = "/api/v1.0/email/send"
)

// EmailJSClient sends templates via the EmailJS REST API.
// See https://www.emailjs.com/docs/rest-api/send/.
type EmailJSClient struct {
	ServiceID  string
	PublicKey  string
	PrivateKey string // accessToken; required when the account enforces it
	BaseURL    string
	HTTPClient *http.Client
}

// NewEmailJSClient returns a client; baseURL is optional.
func NewEmailJSClient(serviceID, publicKey, privateKey, baseURL string) *EmailJSClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &EmailJSClient{
		ServiceID:  serviceID,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send implements port.EmailDispatcher. Any non-200 answer is a failure.
func (c *EmailJSClient) Send(ctx context.Context, templateID string, params map[string]string) error {
	if c.ServiceID == "" || c.PublicKey == "" {
		return fmt.Errorf("emailjs: service id or public key not configured")
	}
	if templateID == "" {
		return fmt.Errorf("emailjs: template id not configured")
	}

	raw, err := json.Marshal(sendRequest{
		ServiceID:      c.ServiceID,
		TemplateID:     templateID,
		UserID:         c.PublicKey,
		AccessToken:    c.PrivateKey,
		TemplateParams: params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+sendPath, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("emailjs: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
