// Package email implements provider.Sender against a SendGrid-shaped mail
// API: a plain HTTPS endpoint accepting a JSON payload and a bearer token.
// No SendGrid SDK is imported; the provider contract (spec §4.4) treats
// every channel provider as a black-box HTTP client.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors" // v0.9.1
	"github.com/sony/gobreaker" // v0.5.0
	"golang.org/x/time/rate"

	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/provider"
)

// Client dispatches email sends against the configured provider endpoint.
type Client struct {
	httpClient *http.Client
	defaults   config.EmailProviderConfig
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// New builds an email provider client from process-wide defaults. rps
// bounds outbound requests per second across every tenant this process
// dispatches for; 0 disables limiting.
func New(cfg config.EmailProviderConfig, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		defaults:   cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "email-provider",
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

type sendGridPayload struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send dispatches one email through the provider endpoint.
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

	contentType := "text/plain"
	if req.IsHTML {
		contentType = "text/html"
	}
	fromEmail := req.FromEmail
	if fromEmail == "" {
		fromEmail = c.defaults.FromEmail
	}
	fromName := req.FromName
	if fromName == "" {
		fromName = c.defaults.FromName
	}

	payload := sendGridPayload{
		Personalizations: []personalization{{To: []address{{Email: req.Recipient}}}},
		From:             address{Email: fromEmail, Name: fromName},
		Subject:          req.Subject,
		Content:          []content{{Type: contentType, Value: req.Body}},
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

func (c *Client) doSend(ctx context.Context, endpoint, apiKey string, payload sendGridPayload) (classify.Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return classify.Outcome{}, errors.Wrap(err, "failed to marshal email payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
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
		ErrorMessage: fmt.Sprintf("email provider returned status %d", resp.StatusCode),
	}
	return outcome, errors.Errorf("email provider returned status %d", resp.StatusCode)
}
