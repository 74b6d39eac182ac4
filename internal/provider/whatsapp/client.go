// Package whatsapp implements provider.Sender against a WASender-shaped
// messaging API: a plain HTTPS endpoint accepting session-scoped JSON
// payloads and a bearer token. No WhatsApp Business SDK is imported; per
// spec §4.4 every channel provider is a black-box HTTP client here.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors" // v0.9.1
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/provider"
)

// Client dispatches WhatsApp sends against the configured provider endpoint.
// It has no knowledge of per-session sequencing; that mandatory mutual
// exclusion and inter-message delay live in internal/workers/session.go,
// one layer up, so this client can be exercised independently in tests.
type Client struct {
	httpClient *http.Client
	defaults   config.WhatsAppProviderConfig
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// New builds a WhatsApp provider client from process-wide defaults.
func New(cfg config.WhatsAppProviderConfig, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		defaults:   cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "whatsapp-provider",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		}),
		limiter: limiter,
	}
}

type sendPayload struct {
	To          string `json:"to"`
	Text        string `json:"text,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Send dispatches one WhatsApp message through the provider endpoint.
func (c *Client) Send(ctx context.Context, req provider.SendRequest) (classify.Outcome, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return classify.Outcome{}, errors.Wrap(err, "rate limiter wait failed")
		}
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.defaults.APIKey
	}
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = c.defaults.Endpoint
	}

	payload := sendPayload{
		To:          req.Recipient,
		Text:        req.Body,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		DocumentURL: req.DocumentURL,
		FileName:    req.FileName,
		Caption:     req.Caption,
	}

	outcomeI, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSend(ctx, endpoint, apiKey, payload)
	})
	if err != nil {
		if outcomeI != nil {
			return outcomeI.(classify.Outcome), err
		}
		return classify.Outcome{Success: false, ErrorMessage: err.Error()}, err
	}
	return outcomeI.(classify.Outcome), nil
}

func (c *Client) doSend(ctx context.Context, endpoint, apiKey string, payload sendPayload) (classify.Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return classify.Outcome{}, errors.Wrap(err, "failed to marshal whatsapp payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return classify.Outcome{}, errors.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classify.Outcome{Success: false, ErrorMessage: err.Error()}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return classify.Outcome{Success: true, HTTPStatus: resp.StatusCode}, nil
	}

	outcome := classify.Outcome{
		Success:      false,
		HTTPStatus:   resp.StatusCode,
		ResponseBody: string(respBody),
		ErrorMessage: fmt.Sprintf("whatsapp provider returned status %d", resp.StatusCode),
	}
	return outcome, errors.Errorf("whatsapp provider returned status %d", resp.StatusCode)
}
