package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailJSClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := NewEmailJSClient("service_x", "pub", "priv", srv.URL)
	err := c.Send(context.Background(), "template_contact", map[string]string{
		"from_name": "Bharat", "from_email": "b@example.com", "subject": "Hi", "message": "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "service_x", got.ServiceID)
	assert.Equal(t, "template_contact", got.TemplateID)
	assert.Equal(t, "pub", got.UserID)
	assert.Equal(t, "priv", got.AccessToken)
	assert.Equal(t, "Bharat", got.TemplateParams["from_name"])
}

func TestEmailJSClient_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("The template ID is invalid"))
	}))
	defer srv.Close()

	err := NewEmailJSClient("s", "p", "", srv.URL).Send(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Contains(t, err.Error(), "template ID is invalid")
}

func TestEmailJSClient_NotConfigured(t *testing.T) {
	assert.Error(t, NewEmailJSClient("", "", "", "").Send(context.Background(), "t", nil))
	assert.Error(t, NewEmailJSClient("s", "p", "", "").Send(context.Background(), "", nil))
}
