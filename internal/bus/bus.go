// Package bus is the Bus Abstraction (spec §4.2): an at-least-once,
// manually-acknowledged message bus over Redis Streams. Producers XADD an
// envelope onto a channel's stream; consumer-group workers XREADGROUP it,
// process it, and XACK only on success, so a crashed worker's unacked
// entries become reclaimable via XAUTOCLAIM rather than silently lost.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8" // v8.11.5
	"github.com/pkg/errors"        // v0.9.1
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notiplex/notification-platform/internal/models"
)

// Topic names the stream a channel's messages travel on, plus its
// dead-letter sibling.
type Topic string

const (
	TopicEmail       Topic = "notifications.email"
	TopicWhatsApp    Topic = "notifications.whatsapp"
	TopicEmailDLQ    Topic = "notifications.email.dlq"
	TopicWhatsAppDLQ Topic = "notifications.whatsapp.dlq"

	// ConsumerGroup is the single consumer group every worker process of a
	// given channel joins; XREADGROUP load-balances stream entries across
	// its members and XAUTOCLAIM lets a live member steal entries whose
	// owner died mid-processing.
	ConsumerGroup = "notification-workers"

	// claimIdleThreshold is how long an entry may sit unacked before another
	// consumer is allowed to reclaim and retry it.
	claimIdleThreshold = 30 * time.Second
)

// TopicForChannel maps a channel to its live topic.
func TopicForChannel(ch models.Channel) Topic {
	if ch == models.ChannelWhatsApp {
		return TopicWhatsApp
	}
	return TopicEmail
}

// DLQFor returns a topic's dead-letter sibling.
func DLQFor(t Topic) Topic {
	switch t {
	case TopicEmail:
		return TopicEmailDLQ
	case TopicWhatsApp:
		return TopicWhatsAppDLQ
	default:
		return t + ".dlq"
	}
}

// Envelope is what actually travels on the bus: the message id, site id and
// channel, just enough to let a worker fetch the authoritative row from the
// Message Store and dispatch it. It does not carry the message content
// (recipient, body, attachments).
type Envelope struct {
	MessageID string    `json:"message_id"`
	SiteID    string    `json:"site_id"`
	Channel   string    `json:"channel"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Delivery pairs a decoded Envelope with the stream entry id a worker must
// present to Ack or Nack.
type Delivery struct {
	Envelope Envelope
	entryID  string
	stream   string
}

// DLQRecord is what travels on a dead-letter topic: the original reference
// envelope plus the terminal facts spec §4.5's DLQ shape requires, since
// those aren't recoverable from the live envelope alone.
type DLQRecord struct {
	Envelope
	TerminalError        string `json:"terminal_error"`
	Classification       string `json:"classification"`
	RetryCountAtTerminus int    `json:"retry_count_at_terminus"`
}

var (
	busOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_bus_operations_total",
			Help: "Total number of bus operations by topic and outcome.",
		},
		[]string{"topic", "operation", "outcome"},
	)
)

// Bus wraps a go-redis client with the Streams-based publish/consume
// surface the ingress gateway, channel workers, and retry loop share.
type Bus struct {
	client *redis.Client
}

// New wraps an already-connected redis client.
func New(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// EnsureGroups creates the consumer group for every live and DLQ topic if it
// doesn't already exist. Call once at process startup; MKSTREAM means this
// also creates the stream itself on a fresh Redis instance.
func (b *Bus) EnsureGroups(ctx context.Context) error {
	topics := []Topic{TopicEmail, TopicWhatsApp, TopicEmailDLQ, TopicWhatsAppDLQ}
	for _, t := range topics {
		err := b.client.XGroupCreateMkStream(ctx, string(t), ConsumerGroup, "0").Err()
		if err != nil && !isBusyGroupErr(err) {
			return errors.Wrapf(err, "failed to create consumer group for %s", t)
		}
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Publish XADDs an envelope onto a topic's stream.
func (b *Bus) Publish(ctx context.Context, topic Topic, env Envelope) (err error) {
	defer func() { recordOp(string(topic), "publish", err) }()

	env.EnqueuedAt = time.Now()
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}

	return errors.Wrap(b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(topic),
		Values: map[string]interface{}{"envelope": payload},
	}).Err(), "failed to publish to stream")
}

// Consume reads up to count pending-then-new entries for a consumer, first
// reclaiming any entry idle longer than claimIdleThreshold via XAUTOCLAIM
// (picking up after a crashed sibling), then pulling fresh entries with
// XREADGROUP. A block of zero or less returns at once when no new entry is
// waiting.
func (b *Bus) Consume(ctx context.Context, topic Topic, consumerName string, count int64, block time.Duration) (out []Delivery, err error) {
	defer func() { recordOp(string(topic), "consume", err) }()

	if block <= 0 {
		// go-redis omits BLOCK for a negative duration; BLOCK 0 would wait forever.
		block = -1
	}

	reclaimed, err := b.reclaim(ctx, topic, consumerName, count)
	if err != nil {
		return nil, err
	}
	out = append(out, reclaimed...)
	if int64(len(out)) >= count {
		return out, nil
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumerName,
		Streams:  []string{string(topic), ">"},
		Count:    count - int64(len(out)),
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return out, nil
		}
		return out, errors.Wrap(err, "failed to read from consumer group")
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			d, decodeErr := decodeMessage(string(topic), msg)
			if decodeErr != nil {
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func (b *Bus) reclaim(ctx context.Context, topic Topic, consumerName string, count int64) ([]Delivery, error) {
	msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   string(topic),
		Group:    ConsumerGroup,
		Consumer: consumerName,
		MinIdle:  claimIdleThreshold,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to autoclaim pending entries")
	}

	var out []Delivery
	for _, msg := range msgs {
		d, decodeErr := decodeMessage(string(topic), msg)
		if decodeErr != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeMessage(stream string, msg redis.XMessage) (Delivery, error) {
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		return Delivery{}, errors.New("envelope field missing or not a string")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Delivery{}, errors.Wrap(err, "failed to unmarshal envelope")
	}
	return Delivery{Envelope: env, entryID: msg.ID, stream: stream}, nil
}

// Ack acknowledges successful processing of a delivery, removing it from the
// consumer group's pending entries list.
func (b *Bus) Ack(ctx context.Context, topic Topic, d Delivery) (err error) {
	defer func() { recordOp(string(topic), "ack", err) }()
	return errors.Wrap(b.client.XAck(ctx, string(topic), ConsumerGroup, d.entryID).Err(), "failed to ack entry")
}

// Nack leaves a delivery's entry pending and unacked so it is picked up
// again by Consume's reclaim pass once claimIdleThreshold elapses. It sends
// nothing to Redis and never routes to a dead-letter stream; RouteToDLQ does
// that.
func (b *Bus) Nack(ctx context.Context, topic Topic, d Delivery) error {
	return nil
}

// PublishDLQ XADDs a DLQRecord onto a topic's dead-letter stream, carrying
// the terminal facts (error, classification, retry count) alongside the
// reference envelope.
func (b *Bus) PublishDLQ(ctx context.Context, topic Topic, rec DLQRecord) (err error) {
	defer func() { recordOp(string(topic), "publish_dlq", err) }()

	rec.EnqueuedAt = time.Now()
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal dlq record")
	}

	return errors.Wrap(b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(topic),
		Values: map[string]interface{}{"envelope": payload},
	}).Err(), "failed to publish to dead-letter stream")
}

// RouteToDLQ publishes a delivery's envelope plus the supplied terminal
// facts to a topic's dead-letter stream and acks the original entry so it
// stops being redelivered.
func (b *Bus) RouteToDLQ(ctx context.Context, topic Topic, d Delivery, terminalError, classification string, retryCount int) (err error) {
	defer func() { recordOp(string(topic), "route_dlq", err) }()

	rec := DLQRecord{
		Envelope:             d.Envelope,
		TerminalError:        terminalError,
		Classification:       classification,
		RetryCountAtTerminus: retryCount,
	}
	if err = b.PublishDLQ(ctx, DLQFor(topic), rec); err != nil {
		return err
	}
	return b.Ack(ctx, topic, d)
}

func recordOp(topic, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	busOps.WithLabelValues(topic, op, outcome).Inc()
}
