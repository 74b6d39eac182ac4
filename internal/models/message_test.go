package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageIDFormat(t *testing.T) {
	id := NewMessageID()
	assert.True(t, len(id) == len("MSG-")+24)
	assert.Equal(t, "MSG-", id[:4])
}

func TestMessageLogValidateEmail(t *testing.T) {
	m := &MessageLog{SiteID: "s1", Channel: ChannelEmail, Recipient: "a@b.com"}
	require.Error(t, m.Validate(), "subject and body are required")

	m.Subject = "hi"
	m.Body = "hello"
	require.NoError(t, m.Validate())
}

func TestMessageLogValidateWhatsApp(t *testing.T) {
	m := &MessageLog{SiteID: "s1", Channel: ChannelWhatsApp, Recipient: "+15551234567"}
	require.Error(t, m.Validate())

	m.ImageURL = "https://example.test/img.png"
	require.NoError(t, m.Validate())
}

func TestMessageLogValidateFutureSchedule(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	m := &MessageLog{
		SiteID: "s1", Channel: ChannelEmail, Recipient: "a@b.com",
		Subject: "hi", Body: "hello", ScheduledAt: &past,
	}
	require.Error(t, m.Validate())
}

func TestInitialStatus(t *testing.T) {
	m := &MessageLog{}
	assert.Equal(t, StatusPending, m.InitialStatus())

	future := time.Now().Add(time.Hour)
	m.ScheduledAt = &future
	assert.Equal(t, StatusScheduled, m.InitialStatus())
}

func TestValidTransition(t *testing.T) {
	assert.True(t, ValidTransition("", StatusPending))
	assert.True(t, ValidTransition("", StatusScheduled))
	assert.False(t, ValidTransition("", StatusDelivered))

	assert.True(t, ValidTransition(StatusPending, StatusFailed))
	assert.True(t, ValidTransition(StatusFailed, StatusPending))
	assert.False(t, ValidTransition(StatusDelivered, StatusFailed))
	assert.False(t, ValidTransition(StatusDelivered, StatusPending))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusScheduled.Terminal())
}
