package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/provider"
)

func TestSendTextSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(config.WhatsAppProviderConfig{APIKey: "key", Endpoint: srv.URL, Timeout: time.Second}, 0)

	outcome, err := c.Send(context.Background(), provider.SendRequest{Recipient: "+15551234567", Body: "hello"})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestSendRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("too many requests"))
	}))
	defer srv.Close()

	c := New(config.WhatsAppProviderConfig{APIKey: "key", Endpoint: srv.URL, Timeout: time.Second}, 0)

	outcome, err := c.Send(context.Background(), provider.SendRequest{Recipient: "+15551234567", ImageURL: "https://example.com/x.png"})
	assert.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, outcome.HTTPStatus)
}
