package workers

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/provider"
	"github.com/notiplex/notification-platform/internal/store"
)

type stubSender struct {
	outcome classify.Outcome
	err     error
	calls   int
}

func (s *stubSender) Send(ctx context.Context, req provider.SendRequest) (classify.Outcome, error) {
	s.calls++
	return s.outcome, s.err
}

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := bus.New(client)
	require.NoError(t, b.EnsureGroups(context.Background()))
	return b
}

func messageRowCols() []string {
	return []string{
		"message_id", "site_id", "channel", "status", "recipient", "subject", "body",
		"from_email", "from_name", "is_html", "image_url", "video_url", "document_url",
		"file_name", "caption", "error_message", "retry_count", "failure_type", "metadata",
		"created_at", "updated_at", "scheduled_at", "sent_at", "delivered_at",
	}
}

func TestWorkerHandleSuccessAcksAndMarksDelivered(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	st := store.New(db, config.DatabaseConfig{
		MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Minute, QueryTimeout: time.Second,
	})

	now := time.Now()
	mock.ExpectQuery("SELECT message_id, site_id, channel").
		WillReturnRows(sqlmock.NewRows(messageRowCols()).AddRow(
			"MSG-1", "SITE-1", "EMAIL", "PENDING", "a@example.com", "subj", "body",
			"", "", false, "", "", "", "", "", "", 0, "", []byte(`{}`),
			now, now, nil, nil, nil,
		))
	mock.ExpectQuery("SELECT site_id, site_name, api_key_hash").
		WillReturnRows(sqlmock.NewRows([]string{
			"site_id", "site_name", "api_key_hash", "whatsapp_session_name",
			"wasender_api_key_encrypted", "sendgrid_api_key_encrypted",
			"sendgrid_from_email", "sendgrid_from_name", "is_active", "created_at", "updated_at",
		}).AddRow("SITE-1", "acme", "hash", "", "", "key", "from@acme.com", "Acme", true, now, now))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM message_logs").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec("UPDATE message_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO message_status_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO site_metrics_daily").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE site_metrics_daily").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	b := newTestBus(t)
	sender := &stubSender{outcome: classify.Outcome{Success: true}}

	w := NewEmailWorker(st, b, sender, "worker-1", zap.NewNop())

	require.NoError(t, b.Publish(context.Background(), bus.TopicEmail, bus.Envelope{MessageID: "MSG-1", SiteID: "SITE-1", Channel: "EMAIL"}))
	deliveries, err := b.Consume(context.Background(), bus.TopicEmail, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	w.handle(context.Background(), deliveries[0])

	require.Equal(t, 1, sender.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
