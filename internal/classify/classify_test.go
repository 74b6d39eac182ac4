package classify

import (
	"strings"
	"testing"

	"github.com/notiplex/notification-platform/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPermanentByStatus(t *testing.T) {
	assert.Equal(t, models.FailurePermanent, Classify(Outcome{HTTPStatus: 401}))
	assert.Equal(t, models.FailurePermanent, Classify(Outcome{HTTPStatus: 403}))
}

func TestClassifyPermanentByBody(t *testing.T) {
	assert.Equal(t, models.FailurePermanent, Classify(Outcome{ResponseBody: "the supplied key is invalid"}))
}

func TestClassifyRateLimit(t *testing.T) {
	assert.Equal(t, models.FailureRateLimit, Classify(Outcome{HTTPStatus: 429}))
	assert.Equal(t, models.FailureRateLimit, Classify(Outcome{ErrorMessage: "Too Many Requests"}))
}

func TestClassifyTransientDefault(t *testing.T) {
	assert.Equal(t, models.FailureTransient, Classify(Outcome{HTTPStatus: 503}))
	assert.Equal(t, models.FailureTransient, Classify(Outcome{ErrorMessage: "connection reset"}))
}

func TestRedactBoundsLength(t *testing.T) {
	huge := strings.Repeat("x", 10*1024*1024)
	out := Redact(huge)
	assert.Less(t, len(out), 3000)
}

func TestRedactScrubsAPIKey(t *testing.T) {
	out := Redact(`request failed: api_key=sk_live_abcdef123 rejected`)
	assert.NotContains(t, out, "sk_live_abcdef123")
	assert.Contains(t, out, "[REDACTED]")
}
