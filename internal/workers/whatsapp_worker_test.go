package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notiplex/notification-platform/internal/models"
)

func TestSessionKeyForPrefersNamedSession(t *testing.T) {
	site := &models.Site{SiteID: "SITE-1", WhatsAppSessionName: "acme-primary"}
	assert.Equal(t, "acme-primary", sessionKeyFor(site))
}

func TestSessionKeyForFallsBackToSiteID(t *testing.T) {
	site := &models.Site{SiteID: "SITE-1"}
	assert.Equal(t, "site:SITE-1", sessionKeyFor(site))
}

func TestSessionKeyForFallsBackToDefault(t *testing.T) {
	site := &models.Site{}
	assert.Equal(t, "default", sessionKeyFor(site))
}
