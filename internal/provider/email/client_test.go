package email

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

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(config.EmailProviderConfig{APIKey: "test-key", Endpoint: srv.URL, Timeout: time.Second}, 0)

	outcome, err := c.Send(context.Background(), provider.SendRequest{
		Recipient: "a@example.com",
		Subject:   "hi",
		Body:      "hello",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	c := New(config.EmailProviderConfig{APIKey: "bad-key", Endpoint: srv.URL, Timeout: time.Second}, 0)

	outcome, err := c.Send(context.Background(), provider.SendRequest{Recipient: "a@example.com", Subject: "hi", Body: "hello"})
	assert.Error(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, http.StatusUnauthorized, outcome.HTTPStatus)
}

func TestSendPerTenantOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tenant-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(config.EmailProviderConfig{APIKey: "default-key", Endpoint: "http://unused.invalid", Timeout: time.Second}, 0)

	_, err := c.Send(context.Background(), provider.SendRequest{
		Recipient: "a@example.com", Subject: "hi", Body: "hello",
		APIKey: "tenant-key", Endpoint: srv.URL,
	})
	require.NoError(t, err)
}
