package bus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2" // v2.31.0
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := New(client)
	require.NoError(t, b.EnsureGroups(context.Background()))
	return b
}

func TestPublishConsumeAckRoundTrip(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	env := Envelope{MessageID: "MSG-1", SiteID: "SITE-1", Channel: "EMAIL"}
	require.NoError(t, b.Publish(ctx, TopicEmail, env))

	deliveries, err := b.Consume(ctx, TopicEmail, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Equal(t, "MSG-1", deliveries[0].Envelope.MessageID)

	require.NoError(t, b.Ack(ctx, TopicEmail, deliveries[0]))

	again, err := b.Consume(ctx, TopicEmail, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestRouteToDLQPublishesAndAcks(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	env := Envelope{MessageID: "MSG-2", SiteID: "SITE-1", Channel: "WHATSAPP"}
	require.NoError(t, b.Publish(ctx, TopicWhatsApp, env))

	deliveries, err := b.Consume(ctx, TopicWhatsApp, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	require.NoError(t, b.RouteToDLQ(ctx, TopicWhatsApp, deliveries[0], "provider rejected number", "PERMANENT", 3))

	dlqDeliveries, err := b.Consume(ctx, TopicWhatsAppDLQ, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, dlqDeliveries, 1)
	require.Equal(t, "MSG-2", dlqDeliveries[0].Envelope.MessageID)
}

func TestPublishDLQCarriesTerminalFields(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	rec := DLQRecord{
		Envelope:             Envelope{MessageID: "MSG-3", SiteID: "SITE-1", Channel: "EMAIL"},
		TerminalError:        "provider rejected address",
		Classification:       "PERMANENT",
		RetryCountAtTerminus: 5,
	}
	require.NoError(t, b.PublishDLQ(ctx, TopicEmailDLQ, rec))

	streams, err := b.client.XRange(ctx, string(TopicEmailDLQ), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, streams, 1)

	raw, ok := streams[0].Values["envelope"].(string)
	require.True(t, ok)
	require.Contains(t, raw, "provider rejected address")
	require.Contains(t, raw, "PERMANENT")
	require.Contains(t, raw, `"retry_count_at_terminus":5`)
}

func TestTopicForChannel(t *testing.T) {
	require.Equal(t, TopicEmail, TopicForChannel("EMAIL"))
	require.Equal(t, TopicWhatsApp, TopicForChannel("WHATSAPP"))
}
