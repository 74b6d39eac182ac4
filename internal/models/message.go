// Package models defines the persisted entities of the notification platform:
// sites (tenants), message logs, status history, and daily metrics.
// Version: go1.21
package models

import (
	"strings"
	"time"

	"github.com/google/uuid" // v1.3.1
	"github.com/pkg/errors"  // v0.9.1

	"github.com/notiplex/notification-platform/internal/utils"
)

// Channel identifies the delivery medium for a message.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Status is a MessageLog lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusBounced   Status = "BOUNCED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether a status counts toward the daily terminal
// counters. FAILED is terminal for counting purposes even though the
// retry loop may later move it back to PENDING.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusBounced, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// Source identifies who performed a status transition, for the audit trail.
type Source string

const (
	SourceAPI            Source = "API"
	SourceWorkerEmail    Source = "WORKER_EMAIL"
	SourceWorkerWhatsApp Source = "WORKER_WHATSAPP"
	SourceRetry          Source = "RETRY"
	SourceScheduler      Source = "SCHEDULER"
)

// FailureType classifies a provider failure for retry-policy selection.
type FailureType string

const (
	FailurePermanent FailureType = "PERMANENT"
	FailureRateLimit FailureType = "RATE_LIMIT"
	FailureTransient FailureType = "TRANSIENT"
)

// validTransitions enumerates the status transitions the system will ever
// perform. It is consulted by Store.UpdateStatus so an invalid transition
// (e.g. skipping straight from SCHEDULED to DELIVERED) fails loudly rather than
// silently corrupting the audit trail.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusSent:      true,
		StatusDelivered: true,
		StatusFailed:    true,
		StatusBounced:   true,
		StatusRejected:  true,
	},
	StatusScheduled: {
		StatusPending: true,
	},
	StatusSent: {
		StatusDelivered: true,
		StatusFailed:    true,
		StatusBounced:   true,
	},
	StatusFailed: {
		StatusPending: true, // republish by the retry loop
	},
	// DELIVERED, BOUNCED, REJECTED are terminal: no outgoing transitions.
}

// ValidTransition reports whether moving a MessageLog from `from` to `to`
// is a transition the system ever performs. The zero Status (used for the
// very first history row) may transition to PENDING or SCHEDULED.
func ValidTransition(from, to Status) bool {
	if from == "" {
		return to == StatusPending || to == StatusScheduled
	}
	if from == to {
		return false
	}
	return validTransitions[from][to]
}

// NewMessageID mints an externally visible, opaque message identifier in
// the form "MSG-" + 24 random characters, per spec §3.
func NewMessageID() string {
	return "MSG-" + uuidToken(24)
}

// NewSiteID mints an externally visible, opaque site identifier.
func NewSiteID() string {
	return "SITE-" + uuidToken(20)
}

// uuidToken derives n upper-case hex characters from fresh UUIDs. A single
// UUID (32 hex chars once dashes are stripped) covers every length this
// package asks for; a loop guards the hypothetical case of a larger n.
func uuidToken(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.New().String(), "-", ""))
	}
	token := strings.ToUpper(b.String())
	return token[:n]
}

// MessageLog is the canonical, durable record of one delivery attempt.
type MessageLog struct {
	MessageID    string
	SiteID       string
	Channel      Channel
	Status       Status
	Recipient    string
	Subject      string
	Body         string
	FromEmail    string
	FromName     string
	IsHTML       bool
	ImageURL     string
	VideoURL     string
	DocumentURL  string
	FileName     string
	Caption      string
	ErrorMessage string
	RetryCount   int
	FailureType  FailureType
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ScheduledAt  *time.Time
	SentAt       *time.Time
	DeliveredAt  *time.Time
}

// Validate enforces the channel-specific field requirements from spec §4.3
// step 2. It does not touch the database; callers run it before CreateMessage.
func (m *MessageLog) Validate() error {
	if m.SiteID == "" {
		return errors.New("site id is required")
	}
	if m.Recipient == "" {
		return errors.New("recipient is required")
	}

	switch m.Channel {
	case ChannelEmail:
		if m.Subject == "" {
			return errors.New("subject is required for email messages")
		}
		if m.Body == "" {
			return errors.New("body is required for email messages")
		}
		if err := utils.ValidateEmailAddress(m.Recipient); err != nil {
			return err
		}
	case ChannelWhatsApp:
		if m.Body == "" && m.ImageURL == "" && m.VideoURL == "" && m.DocumentURL == "" {
			return errors.New("whatsapp messages require body, imageUrl, videoUrl, or documentUrl")
		}
		if err := utils.ValidatePhoneNumber(m.Recipient); err != nil {
			return err
		}
	default:
		return errors.Errorf("unsupported channel: %q", m.Channel)
	}

	if m.ScheduledAt != nil {
		if err := utils.ValidateScheduledTime(*m.ScheduledAt); err != nil {
			return err
		}
	}

	return nil
}

// InitialStatus returns PENDING, or SCHEDULED when ScheduledAt names a
// future time, per spec §3's MessageLog lifecycle rule.
func (m *MessageLog) InitialStatus() Status {
	if m.ScheduledAt != nil && m.ScheduledAt.After(time.Now()) {
		return StatusScheduled
	}
	return StatusPending
}

// StatusHistory is one append-only row recording a MessageLog transition.
type StatusHistory struct {
	MessageID string
	OldStatus Status
	NewStatus Status
	Source    Source
	ChangedAt time.Time
	Note      string
}

// SiteMetricsDaily is a pre-aggregated per-tenant/per-channel/per-day counter row.
type SiteMetricsDaily struct {
	SiteID         string
	Channel        Channel
	Date           time.Time
	TotalSent      int64
	TotalDelivered int64
	TotalFailed    int64
}

// SiteStats is the computed summary returned by Store.StatsForSite.
type SiteStats struct {
	CountsByStatus map[Status]int64
	SuccessRate    float64
	AveragePerDay  float64
}
