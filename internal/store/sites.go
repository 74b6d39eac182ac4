package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/notiplex/notification-platform/internal/models"
)

// CreateSite registers a new tenant. Only site.APIKeyHash is persisted; the
// raw key the caller minted is never written to the database.
func (s *Store) CreateSite(ctx context.Context, site *models.Site) (err error) {
	start := time.Now()
	defer func() { observe("create_site", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sites (
			site_id, site_name, api_key_hash, whatsapp_session_name,
			wasender_api_key_encrypted, sendgrid_api_key_encrypted,
			sendgrid_from_email, sendgrid_from_name, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		site.SiteID, site.SiteName, site.APIKeyHash, site.WhatsAppSessionName,
		site.WASenderAPIKeyEncrypted, site.SendGridAPIKeyEncrypted,
		site.SendGridFromEmail, site.SendGridFromName, true, now,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Wrap(ErrConflict, site.SiteName)
		}
		return errors.Wrap(err, "failed to insert site")
	}
	return nil
}

// GetSiteByID loads a tenant record by its opaque site id.
func (s *Store) GetSiteByID(ctx context.Context, siteID string) (site *models.Site, err error) {
	start := time.Now()
	defer func() { observe("get_site_by_id", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return scanSite(s.db.QueryRowContext(ctx, `
		SELECT site_id, site_name, api_key_hash, whatsapp_session_name,
		       wasender_api_key_encrypted, sendgrid_api_key_encrypted,
		       sendgrid_from_email, sendgrid_from_name, is_active, created_at, updated_at
		FROM sites WHERE site_id = $1`, siteID))
}

// GetSiteByName loads a tenant record by its human-readable registration name.
func (s *Store) GetSiteByName(ctx context.Context, name string) (site *models.Site, err error) {
	start := time.Now()
	defer func() { observe("get_site_by_name", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return scanSite(s.db.QueryRowContext(ctx, `
		SELECT site_id, site_name, api_key_hash, whatsapp_session_name,
		       wasender_api_key_encrypted, sendgrid_api_key_encrypted,
		       sendgrid_from_email, sendgrid_from_name, is_active, created_at, updated_at
		FROM sites WHERE site_name = $1`, name))
}

func scanSite(row *sql.Row) (*models.Site, error) {
	site := &models.Site{}
	err := row.Scan(
		&site.SiteID, &site.SiteName, &site.APIKeyHash, &site.WhatsAppSessionName,
		&site.WASenderAPIKeyEncrypted, &site.SendGridAPIKeyEncrypted,
		&site.SendGridFromEmail, &site.SendGridFromName, &site.IsActive,
		&site.CreatedAt, &site.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(ErrNotFound, "site")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan site row")
	}
	return site, nil
}
