package ingress

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notiplex/notification-platform/internal/auth"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/store"
)

type siteHandler struct {
	store  *store.Store
	hasher *auth.Hasher
}

type registerSiteRequest struct {
	SiteName            string `json:"siteName" binding:"required"`
	WhatsAppSessionName string `json:"whatsappSessionName"`
	WASenderAPIKey      string `json:"wasenderApiKey"`
	SendGridAPIKey      string `json:"sendgridApiKey"`
	SendGridFromEmail   string `json:"sendgridFromEmail"`
	SendGridFromName    string `json:"sendgridFromName"`
}

// register creates a tenant and returns its API key exactly once, per
// spec §3 and §8: only the bcrypt hash is ever persisted afterward.
func (h *siteHandler) register(c *gin.Context) {
	var req registerSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secret, err := auth.GenerateKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate api key"})
		return
	}

	siteID := models.NewSiteID()
	hash, err := h.hasher.Hash(secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash api key"})
		return
	}

	site := &models.Site{
		SiteID:                  siteID,
		SiteName:                req.SiteName,
		APIKeyHash:              hash,
		WhatsAppSessionName:     req.WhatsAppSessionName,
		WASenderAPIKeyEncrypted: req.WASenderAPIKey,
		SendGridAPIKeyEncrypted: req.SendGridAPIKey,
		SendGridFromEmail:       req.SendGridFromEmail,
		SendGridFromName:        req.SendGridFromName,
	}

	if err := h.store.CreateSite(c.Request.Context(), site); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "site name already registered"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"siteId": siteID,
		"apiKey": auth.FormatKey(siteID, secret),
	})
}
