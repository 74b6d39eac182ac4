// Package classify assigns a retry classification to a failed provider
// dispatch, per spec §4.4: PERMANENT, RATE_LIMIT, or TRANSIENT.
package classify

import (
	"strings"

	"github.com/notiplex/notification-platform/internal/models"
)

// Outcome is the channel-agnostic result of one provider dispatch attempt,
// per spec §4.4's provider contract.
type Outcome struct {
	Success      bool
	ErrorMessage string
	HTTPStatus   int
	ResponseBody string
}

// Classify inspects a non-success Outcome and assigns a FailureType. The
// response body is consulted in memory only (never persisted verbatim, per
// spec §4.4's redaction rule); Redact should be applied separately before
// storing ErrorMessage.
func Classify(o Outcome) models.FailureType {
	switch {
	case isPermanent(o):
		return models.FailurePermanent
	case isRateLimited(o):
		return models.FailureRateLimit
	default:
		return models.FailureTransient
	}
}

func isPermanent(o Outcome) bool {
	if o.HTTPStatus == 401 || o.HTTPStatus == 403 {
		return true
	}
	body := strings.ToLower(o.ResponseBody)
	if strings.Contains(body, "invalid api key") || strings.Contains(body, "invalid_api_key") {
		return true
	}
	return strings.Contains(body, "invalid") && strings.Contains(body, "key")
}

func isRateLimited(o Outcome) bool {
	if o.HTTPStatus == 429 {
		return true
	}
	return strings.Contains(strings.ToLower(o.ResponseBody), "too many requests") ||
		strings.Contains(strings.ToLower(o.ErrorMessage), "too many requests")
}

// maxStoredErrorLen bounds how much of a provider error we persist. A 10MB
// response body must never bloat the stored error_message column.
const maxStoredErrorLen = 2048

// redactedMarker replaces anything that looks like a provider API key so a
// secret never lands in message_logs.error_message.
const redactedMarker = "[REDACTED]"

var secretPatterns = []string{"api_key", "apikey", "api-key", "authorization", "bearer "}

// Redact bounds an error message's length and scrubs obvious API-key-shaped
// substrings before it is safe to persist, per spec §4.4.
func Redact(message string) string {
	lower := strings.ToLower(message)
	out := message
	for _, pat := range secretPatterns {
		idx := strings.Index(lower, pat)
		if idx == -1 {
			continue
		}
		// Redact from the pattern to the next whitespace/comma/quote, a
		// crude but safe-by-default bound on an unstructured error string.
		end := idx + len(pat)
		for end < len(out) && !strings.ContainsRune(" \t\n,;\"'}", rune(out[end])) {
			end++
		}
		out = out[:idx] + redactedMarker + out[end:]
		lower = strings.ToLower(out)
	}
	if len(out) > maxStoredErrorLen {
		out = out[:maxStoredErrorLen] + "...(truncated)"
	}
	return out
}
