// Package provider defines the channel-agnostic dispatch contract (spec
// §4.4) that the email and whatsapp provider clients implement. Each
// provider is treated as a black-box HTTPS endpoint: this package never
// imports a vendor SDK, only net/http wrapped in the resilience primitives
// the rest of the platform already uses.
package provider

import (
	"context"

	"github.com/notiplex/notification-platform/internal/classify"
)

// SendRequest carries everything a provider client needs for one dispatch
// attempt. Channel-irrelevant fields are left zero.
type SendRequest struct {
	MessageID   string
	Recipient   string
	Subject     string
	Body        string
	FromEmail   string
	FromName    string
	IsHTML      bool
	ImageURL    string
	VideoURL    string
	DocumentURL string
	FileName    string
	Caption     string

	// APIKey and Endpoint override the process-wide default when a tenant
	// has configured its own provider credentials (spec §3's Site fields).
	APIKey   string
	Endpoint string
}

// Sender dispatches one message through a channel's provider, reporting its
// result as a classify.Outcome so the caller can classify.Classify it
// without a conversion step.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (classify.Outcome, error)
}
