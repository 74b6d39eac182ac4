package ingress

import (
	"time"

	"github.com/notiplex/notification-platform/internal/models"
)

// sendRequest is the wire shape of one notification in both the single-send
// and bulk-send request bodies. Struct tags drive gin's binding validator
// (go-playground/validator/v10) for shape; models.MessageLog.Validate
// handles the channel-specific cross-field rules binding tags can't express.
type sendRequest struct {
	Channel     string            `json:"channel" binding:"required,oneof=EMAIL WHATSAPP"`
	Recipient   string            `json:"recipient" binding:"required"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	FromEmail   string            `json:"fromEmail"`
	FromName    string            `json:"fromName"`
	IsHTML      bool              `json:"isHtml"`
	ImageURL    string            `json:"imageUrl"`
	VideoURL    string            `json:"videoUrl"`
	DocumentURL string            `json:"documentUrl"`
	FileName    string            `json:"fileName"`
	Caption     string            `json:"caption"`
	Metadata    map[string]string `json:"metadata"`
	ScheduledAt *time.Time        `json:"scheduledAt"`
}

func (r sendRequest) toMessageLog(siteID string) *models.MessageLog {
	m := &models.MessageLog{
		MessageID:   models.NewMessageID(),
		SiteID:      siteID,
		Channel:     models.Channel(r.Channel),
		Recipient:   r.Recipient,
		Subject:     r.Subject,
		Body:        r.Body,
		FromEmail:   r.FromEmail,
		FromName:    r.FromName,
		IsHTML:      r.IsHTML,
		ImageURL:    r.ImageURL,
		VideoURL:    r.VideoURL,
		DocumentURL: r.DocumentURL,
		FileName:    r.FileName,
		Caption:     r.Caption,
		Metadata:    r.Metadata,
		ScheduledAt: r.ScheduledAt,
	}
	m.Status = m.InitialStatus()
	return m
}
