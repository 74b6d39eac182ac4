package models

import "time"

// Site is a registered tenant. The raw API key is never stored: only
// APIKeyHash, a bcrypt digest, survives past registration.
type Site struct {
	SiteID                   string
	SiteName                 string
	APIKeyHash               string
	WhatsAppSessionName      string
	WASenderAPIKeyEncrypted  string
	SendGridAPIKeyEncrypted  string
	SendGridFromEmail        string
	SendGridFromName         string
	IsActive                 bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
