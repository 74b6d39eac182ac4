package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq" // v1.10.9
	"github.com/pkg/errors"

	"github.com/notiplex/notification-platform/internal/models"
)

// CreateMessage inserts a new MessageLog row and its first status-history
// entry in a single transaction, per spec §4.3 step 3. The row's status must
// already be set (models.InitialStatus) before calling.
func (s *Store) CreateMessage(ctx context.Context, m *models.MessageLog) (err error) {
	start := time.Now()
	defer func() { observe("create_message", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	createdAt := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_logs (
			message_id, site_id, channel, status, recipient, subject, body,
			from_email, from_name, is_html, image_url, video_url, document_url,
			file_name, caption, metadata, created_at, updated_at, scheduled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17, $18
		)`,
		m.MessageID, m.SiteID, m.Channel, m.Status, m.Recipient, m.Subject, m.Body,
		m.FromEmail, m.FromName, m.IsHTML, m.ImageURL, m.VideoURL, m.DocumentURL,
		m.FileName, m.Caption, metadata, createdAt, m.ScheduledAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Wrap(ErrConflict, m.MessageID)
		}
		return errors.Wrap(err, "failed to insert message log")
	}

	if err = insertHistory(ctx, tx, m.MessageID, "", m.Status, models.SourceAPI, ""); err != nil {
		return err
	}

	if err = bumpSentMetric(ctx, tx, m.SiteID, m.Channel, createdAt); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// bumpSentMetric increments the day's total_sent counter, keyed on the UTC
// calendar date derived from the message's created_at, per spec §4.1.
func bumpSentMetric(ctx context.Context, tx *sql.Tx, siteID string, channel models.Channel, createdAt time.Time) error {
	date := createdAt.UTC().Format("2006-01-02")

	_, err := tx.ExecContext(ctx, `
		INSERT INTO site_metrics_daily (site_id, channel, date, total_sent, total_delivered, total_failed)
		VALUES ($1, $2, $3, 1, 0, 0)
		ON CONFLICT (site_id, channel, date) DO UPDATE
		SET total_sent = site_metrics_daily.total_sent + 1`,
		siteID, channel, date,
	)
	return errors.Wrap(err, "failed to increment sent metric")
}

func insertHistory(ctx context.Context, tx *sql.Tx, messageID string, oldStatus, newStatus models.Status, source models.Source, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO message_status_history (message_id, old_status, new_status, source, changed_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		messageID, oldStatus, newStatus, source, time.Now(), note,
	)
	return errors.Wrap(err, "failed to insert status history")
}

// UpdateStatus transitions a message to newStatus, appending a status-history
// row in the same transaction. A transition into DELIVERED when the message
// is already DELIVERED is a no-op (noop=true, err=nil): the provider webhook
// replay case spec §4.3 calls out explicitly. Any other transition not in
// models.ValidTransition returns ErrInvalidInput without touching the row.
func (s *Store) UpdateStatus(
	ctx context.Context,
	messageID string,
	newStatus models.Status,
	errorMessage string,
	source models.Source,
	failureType models.FailureType,
) (noop bool, err error) {
	start := time.Now()
	defer func() { observe("update_status", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	var current models.Status
	row := tx.QueryRowContext(ctx, `SELECT status FROM message_logs WHERE message_id = $1 FOR UPDATE`, messageID)
	if err = row.Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return false, errors.Wrap(ErrNotFound, messageID)
		}
		return false, errors.Wrap(err, "failed to read current status")
	}

	if current == models.StatusDelivered && newStatus == models.StatusDelivered {
		return true, errors.Wrap(tx.Commit(), "failed to commit no-op transaction")
	}

	if !models.ValidTransition(current, newStatus) {
		return false, errors.Wrapf(ErrInvalidInput, "cannot move message %s from %s to %s", messageID, current, newStatus)
	}

	now := time.Now()
	var sentAt, deliveredAt *time.Time
	switch newStatus {
	case models.StatusSent:
		sentAt = &now
	case models.StatusDelivered:
		deliveredAt = &now
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE message_logs
		SET status = $1, error_message = $2, failure_type = $3, updated_at = $4,
		    sent_at = COALESCE($5, sent_at), delivered_at = COALESCE($6, delivered_at)
		WHERE message_id = $7`,
		newStatus, errorMessage, failureType, now, sentAt, deliveredAt, messageID,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to update message status")
	}

	if err = insertHistory(ctx, tx, messageID, current, newStatus, source, errorMessage); err != nil {
		return false, err
	}

	if newStatus.Terminal() {
		if err = bumpDailyMetric(ctx, tx, messageID, newStatus); err != nil {
			return false, err
		}
	}

	return false, errors.Wrap(tx.Commit(), "failed to commit transaction")
}

func bumpDailyMetric(ctx context.Context, tx *sql.Tx, messageID string, status models.Status) error {
	var col string
	switch status {
	case models.StatusDelivered:
		col = "total_delivered"
	case models.StatusFailed, models.StatusBounced, models.StatusRejected:
		col = "total_failed"
	default:
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO site_metrics_daily (site_id, channel, date, total_sent, total_delivered, total_failed)
		SELECT site_id, channel, CURRENT_DATE, 0, 0, 0 FROM message_logs WHERE message_id = $1
		ON CONFLICT (site_id, channel, date) DO NOTHING`,
		messageID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to seed daily metrics row")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE site_metrics_daily m
		SET `+col+` = `+col+` + 1
		FROM message_logs ml
		WHERE ml.message_id = $1 AND m.site_id = ml.site_id AND m.channel = ml.channel AND m.date = CURRENT_DATE`,
		messageID,
	)
	return errors.Wrap(err, "failed to increment daily metrics")
}

// IncrementRetryCount bumps retry_count by one. Nothing in the platform calls
// it: the retry loop bumps retry_count through FailedBatch.Republish, and the
// ingress and worker paths never touch it.
func (s *Store) IncrementRetryCount(ctx context.Context, messageID string) (err error) {
	start := time.Now()
	defer func() { observe("increment_retry_count", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE message_logs SET retry_count = retry_count + 1, updated_at = $1 WHERE message_id = $2`,
		time.Now(), messageID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to increment retry count")
	}
	return checkRowsAffected(res, messageID)
}

func checkRowsAffected(res sql.Result, messageID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, messageID)
	}
	return nil
}

// GetStatus returns a message's current status.
func (s *Store) GetStatus(ctx context.Context, messageID string) (status models.Status, err error) {
	start := time.Now()
	defer func() { observe("get_status", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT status FROM message_logs WHERE message_id = $1`, messageID)
	if err = row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.Wrap(ErrNotFound, messageID)
		}
		return "", errors.Wrap(err, "failed to read status")
	}
	return status, nil
}

// GetSiteID returns the owning tenant of a message, used by the channel
// workers to look up per-tenant provider credentials before dispatch.
func (s *Store) GetSiteID(ctx context.Context, messageID string) (siteID string, err error) {
	start := time.Now()
	defer func() { observe("get_site_id", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT site_id FROM message_logs WHERE message_id = $1`, messageID)
	if err = row.Scan(&siteID); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.Wrap(ErrNotFound, messageID)
		}
		return "", errors.Wrap(err, "failed to read site id")
	}
	return siteID, nil
}

// GetMessage loads the full row a channel worker needs to dispatch a
// message: recipient, body, and every channel-specific attachment field.
func (s *Store) GetMessage(ctx context.Context, messageID string) (m *models.MessageLog, err error) {
	start := time.Now()
	defer func() { observe("get_message", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	m = &models.MessageLog{}
	var metadata []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, site_id, channel, status, recipient, subject, body,
		       from_email, from_name, is_html, image_url, video_url, document_url,
		       file_name, caption, error_message, retry_count, failure_type, metadata,
		       created_at, updated_at, scheduled_at, sent_at, delivered_at
		FROM message_logs WHERE message_id = $1`, messageID)
	if err = row.Scan(
		&m.MessageID, &m.SiteID, &m.Channel, &m.Status, &m.Recipient, &m.Subject, &m.Body,
		&m.FromEmail, &m.FromName, &m.IsHTML, &m.ImageURL, &m.VideoURL, &m.DocumentURL,
		&m.FileName, &m.Caption, &m.ErrorMessage, &m.RetryCount, &m.FailureType, &metadata,
		&m.CreatedAt, &m.UpdatedAt, &m.ScheduledAt, &m.SentAt, &m.DeliveredAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrap(ErrNotFound, messageID)
		}
		return nil, errors.Wrap(err, "failed to scan message row")
	}

	if len(metadata) > 0 {
		if jsonErr := json.Unmarshal(metadata, &m.Metadata); jsonErr != nil {
			return nil, errors.Wrap(jsonErr, "failed to unmarshal metadata")
		}
	}

	return m, nil
}

// ListFilter narrows ListMessages, per the query surface in spec §5.
type ListFilter struct {
	Status  models.Status
	Channel models.Channel
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// ListMessages returns a page of a tenant's message logs, most recent first.
func (s *Store) ListMessages(ctx context.Context, siteID string, f ListFilter) (out []*models.MessageLog, err error) {
	start := time.Now()
	defer func() { observe("list_messages", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT message_id, site_id, channel, status, recipient, subject, body,
		       error_message, retry_count, failure_type, created_at, updated_at,
		       scheduled_at, sent_at, delivered_at
		FROM message_logs WHERE site_id = $1`
	args := []interface{}{siteID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		query += fmt.Sprintf(" AND channel = $%d", len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	for rows.Next() {
		m := &models.MessageLog{}
		if err = rows.Scan(
			&m.MessageID, &m.SiteID, &m.Channel, &m.Status, &m.Recipient, &m.Subject, &m.Body,
			&m.ErrorMessage, &m.RetryCount, &m.FailureType, &m.CreatedAt, &m.UpdatedAt,
			&m.ScheduledAt, &m.SentAt, &m.DeliveredAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message row")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "error iterating message rows")
}

// StatsForSite computes the aggregate counts and rates spec §5's
// GET /messages/stats endpoint returns.
func (s *Store) StatsForSite(ctx context.Context, siteID string) (stats *models.SiteStats, err error) {
	start := time.Now()
	defer func() { observe("stats_for_site", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM message_logs WHERE site_id = $1 GROUP BY status`, siteID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query status counts")
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	var total, delivered int64
	for rows.Next() {
		var st models.Status
		var n int64
		if err = rows.Scan(&st, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		counts[st] = n
		total += n
		if st == models.StatusDelivered {
			delivered = n
		}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating status counts")
	}

	var successRate float64
	if total > 0 {
		successRate = float64(delivered) / float64(total)
	}

	var days int64
	row := s.db.QueryRowContext(ctx, `
		SELECT GREATEST(1, EXTRACT(DAY FROM now() - MIN(created_at))::bigint)
		FROM message_logs WHERE site_id = $1`, siteID)
	if err = row.Scan(&days); err != nil {
		if err == sql.ErrNoRows {
			days = 1
			err = nil
		} else {
			return nil, errors.Wrap(err, "failed to compute active days")
		}
	}

	return &models.SiteStats{
		CountsByStatus: counts,
		SuccessRate:    successRate,
		AveragePerDay:  float64(total) / float64(days),
	}, nil
}

// DailyMetrics returns the pre-aggregated site_metrics_daily rows for a date
// range, backing spec §5's GET /metrics/site/daily endpoint.
func (s *Store) DailyMetrics(ctx context.Context, siteID string, from, until time.Time) (out []models.SiteMetricsDaily, err error) {
	start := time.Now()
	defer func() { observe("daily_metrics", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, channel, date, total_sent, total_delivered, total_failed
		FROM site_metrics_daily
		WHERE site_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC`, siteID, from, until)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query daily metrics")
	}
	defer rows.Close()

	for rows.Next() {
		var m models.SiteMetricsDaily
		if err = rows.Scan(&m.SiteID, &m.Channel, &m.Date, &m.TotalSent, &m.TotalDelivered, &m.TotalFailed); err != nil {
			return nil, errors.Wrap(err, "failed to scan daily metrics row")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "error iterating daily metrics rows")
}

// SelectAndPromoteScheduled locks up to limit due SCHEDULED rows with
// SELECT ... FOR UPDATE SKIP LOCKED so multiple scheduler replicas never
// promote the same message twice, flips them to PENDING, and returns them
// for the caller to publish. If publish later fails for a message, call
// RevertToScheduled to put it back.
func (s *Store) SelectAndPromoteScheduled(ctx context.Context, now time.Time, limit int) (out []*models.MessageLog, err error) {
	start := time.Now()
	defer func() { observe("promote_scheduled", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT message_id, site_id, channel, status, recipient
		FROM message_logs
		WHERE status = 'SCHEDULED' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select due scheduled messages")
	}

	var ids []string
	for rows.Next() {
		m := &models.MessageLog{}
		if err = rows.Scan(&m.MessageID, &m.SiteID, &m.Channel, &m.Status, &m.Recipient); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan scheduled row")
		}
		out = append(out, m)
		ids = append(ids, m.MessageID)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "error iterating scheduled rows")
	}
	rows.Close()

	for _, m := range out {
		if _, err = tx.ExecContext(ctx, `
			UPDATE message_logs SET status = 'PENDING', updated_at = $1 WHERE message_id = $2`,
			time.Now(), m.MessageID,
		); err != nil {
			return nil, errors.Wrap(err, "failed to promote scheduled message")
		}
		if err = insertHistory(ctx, tx, m.MessageID, models.StatusScheduled, models.StatusPending, models.SourceScheduler, ""); err != nil {
			return nil, err
		}
		m.Status = models.StatusPending
	}

	return out, errors.Wrap(tx.Commit(), "failed to commit promotion transaction")
}

// RevertToScheduled undoes a promotion whose subsequent bus publish failed,
// so the next scheduler cycle picks the message back up.
func (s *Store) RevertToScheduled(ctx context.Context, messageID string, scheduledAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("revert_to_scheduled", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE message_logs SET status = 'SCHEDULED', updated_at = $1
		WHERE message_id = $2 AND status = 'PENDING'`,
		time.Now(), messageID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to revert message to scheduled")
	}
	if err = checkRowsAffected(res, messageID); err != nil {
		return err
	}
	if err = insertHistory(ctx, tx, messageID, models.StatusPending, models.StatusScheduled, models.SourceScheduler, "publish failed, reverted"); err != nil {
		return err
	}
	_ = scheduledAt // retained for callers that want to log the original target time

	return errors.Wrap(tx.Commit(), "failed to commit revert transaction")
}

// SelectFailedBatch locks up to limit FAILED rows with SKIP LOCKED for the
// retry loop's single-pass evaluation. Use Republish or RouteToDLQ on the
// returned FailedBatch, then Commit or Rollback.
func (s *Store) SelectFailedBatch(ctx context.Context, limit int) (batch *FailedBatch, err error) {
	start := time.Now()
	defer func() { observe("select_failed_batch", start, err) }()

	// The batch's transaction outlives this call, so its timeout is released
	// by Commit or Rollback, or here on failure.
	ctx, cancel := s.withTimeout(ctx)
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT message_id, site_id, channel, status, recipient, retry_count, failure_type, error_message, updated_at
		FROM message_logs
		WHERE status = 'FAILED'
		ORDER BY updated_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, errors.Wrap(err, "failed to select failed messages")
	}
	defer rows.Close()

	var out []*models.MessageLog
	for rows.Next() {
		m := &models.MessageLog{}
		if err = rows.Scan(&m.MessageID, &m.SiteID, &m.Channel, &m.Status, &m.Recipient, &m.RetryCount, &m.FailureType, &m.ErrorMessage, &m.UpdatedAt); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, errors.Wrap(err, "failed to scan failed row")
		}
		out = append(out, m)
	}
	if err = rows.Err(); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, errors.Wrap(err, "error iterating failed rows")
	}

	return &FailedBatch{tx: tx, ctx: ctx, cancel: cancel, Rows: out}, nil
}

// FailedBatch is the retry loop's unit of work over one locked batch of
// FAILED messages: decide per-row outside the database, mutate inside it,
// then Commit once.
type FailedBatch struct {
	tx     *sql.Tx
	ctx    context.Context
	cancel context.CancelFunc
	Rows   []*models.MessageLog
}

// Republish flips a message back to PENDING and bumps retry_count, within
// the batch's transaction. The caller publishes to the bus only after Commit
// succeeds; on a publish failure afterward, use Store.UndoRepublish.
func (b *FailedBatch) Republish(messageID string) error {
	if _, err := b.tx.ExecContext(b.ctx, `
		UPDATE message_logs SET status = 'PENDING', retry_count = retry_count + 1, updated_at = $1
		WHERE message_id = $2`,
		time.Now(), messageID,
	); err != nil {
		return errors.Wrap(err, "failed to republish message")
	}
	return insertHistory(b.ctx, b.tx, messageID, models.StatusFailed, models.StatusPending, models.SourceRetry, "retried")
}

// RouteToDLQ records that a message has exhausted retries (or failed
// permanently) without changing its terminal FAILED status; the caller
// publishes the message to the channel's dead-letter topic after Commit.
func (b *FailedBatch) RouteToDLQ(messageID, note string) error {
	return insertHistory(b.ctx, b.tx, messageID, models.StatusFailed, models.StatusFailed, models.SourceRetry, note)
}

// Commit finalizes every Republish/RouteToDLQ call made against this batch.
func (b *FailedBatch) Commit() error {
	defer b.cancel()
	return errors.Wrap(b.tx.Commit(), "failed to commit failed-batch transaction")
}

// Rollback discards every Republish/RouteToDLQ call made against this batch.
func (b *FailedBatch) Rollback() error {
	defer b.cancel()
	return errors.Wrap(b.tx.Rollback(), "failed to roll back failed-batch transaction")
}

// UndoRepublish compensates for a Republish whose bus publish failed after
// commit: it puts the message back to FAILED and removes the retry_count
// increment, so the next retry cycle tries again without double-counting.
func (s *Store) UndoRepublish(ctx context.Context, messageID string) (err error) {
	start := time.Now()
	defer func() { observe("undo_republish", start, err) }()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE message_logs
		SET status = 'FAILED', retry_count = GREATEST(retry_count - 1, 0), updated_at = $1
		WHERE message_id = $2 AND status = 'PENDING'`,
		time.Now(), messageID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to undo republish")
	}
	return checkRowsAffected(res, messageID)
}
