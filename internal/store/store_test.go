package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock" // v1.5.2
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{db: db, queryTimeout: 2 * time.Second}, mock
}

func TestCreateMessageInsertsRowAndHistory(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO message_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO message_status_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO site_metrics_daily").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m := &models.MessageLog{
		MessageID: "MSG-TEST",
		SiteID:    "SITE-TEST",
		Channel:   models.ChannelEmail,
		Status:    models.StatusPending,
		Recipient: "user@example.com",
		Subject:   "hi",
		Body:      "hello",
	}

	err := s.CreateMessage(context.Background(), m)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageDuplicateIDConflict(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO message_logs").
		WillReturnError(&pqConflictError{})
	mock.ExpectRollback()

	m := &models.MessageLog{MessageID: "MSG-DUP", SiteID: "SITE-TEST", Channel: models.ChannelEmail, Status: models.StatusPending, Recipient: "x@example.com", Subject: "s", Body: "b"}

	err := s.CreateMessage(context.Background(), m)
	assert.Error(t, err)
}

func TestUpdateStatusDeliveredIsIdempotent(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM message_logs").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(models.StatusDelivered)))
	mock.ExpectCommit()

	noop, err := s.UpdateStatus(context.Background(), "MSG-1", models.StatusDelivered, "", models.SourceWorkerEmail, "")
	require.NoError(t, err)
	assert.True(t, noop)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusInvalidTransitionRejected(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM message_logs").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(models.StatusDelivered)))
	mock.ExpectRollback()

	_, err := s.UpdateStatus(context.Background(), "MSG-1", models.StatusSent, "", models.SourceWorkerEmail, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetStatusNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT status FROM message_logs").WillReturnRows(sqlmock.NewRows([]string{"status"}))

	_, err := s.GetStatus(context.Background(), "MSG-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementRetryCountNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE message_logs SET retry_count").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.IncrementRetryCount(context.Background(), "MSG-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMessageScansMetadata(t *testing.T) {
	s, mock := newTestStore(t)

	cols := []string{
		"message_id", "site_id", "channel", "status", "recipient", "subject", "body",
		"from_email", "from_name", "is_html", "image_url", "video_url", "document_url",
		"file_name", "caption", "error_message", "retry_count", "failure_type", "metadata",
		"created_at", "updated_at", "scheduled_at", "sent_at", "delivered_at",
	}
	now := time.Now()
	mock.ExpectQuery("SELECT message_id, site_id, channel").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"MSG-1", "SITE-1", "EMAIL", "PENDING", "a@example.com", "subj", "body",
			"", "", false, "", "", "", "", "", "", 0, "", []byte(`{"k":"v"}`),
			now, now, nil, nil, nil,
		))

	m, err := s.GetMessage(context.Background(), "MSG-1")
	require.NoError(t, err)
	assert.Equal(t, "v", m.Metadata["k"])
}

func TestDatabaseConfigWiredIntoStore(t *testing.T) {
	cfg := config.DatabaseConfig{MaxOpenConns: 5, MaxIdleConns: 5, ConnMaxLifetime: time.Minute, QueryTimeout: time.Second}
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := New(db, cfg)
	assert.Equal(t, time.Second, st.queryTimeout)
}

// pqConflictError carries the text of a Postgres unique violation but is not
// a *pq.Error: CreateMessage only maps a *pq.Error with code 23505 to
// ErrConflict, so this error exercises the generic-wrap fallback path.
type pqConflictError struct{}

func (e *pqConflictError) Error() string { return "duplicate key value violates unique constraint" }
