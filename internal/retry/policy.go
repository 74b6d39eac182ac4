// Package retry implements the Retry & Scheduler loop (spec §4.5): a
// periodic pass that promotes due SCHEDULED messages to PENDING and
// publishes them, and a second pass that re-evaluates FAILED messages
// against their failure-classification backoff policy, either republishing
// them or routing them to a channel's dead-letter topic.
package retry

import (
	"time"

	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/models"
)

// PolicyFor selects the backoff policy for a failure classification. A
// PERMANENT failure has no policy to wait on: dlqImmediate reports whether
// the caller should route straight to the dead-letter topic rather than
// consult a BackoffPolicy at all.
func PolicyFor(cfg config.RetryConfig, ft models.FailureType) (policy config.BackoffPolicy, dlqImmediate bool) {
	switch ft {
	case models.FailurePermanent:
		return config.BackoffPolicy{}, cfg.PermanentToDLQImmediately
	case models.FailureRateLimit:
		return cfg.RateLimitPolicy, false
	default:
		return cfg.TransientPolicy, false
	}
}

// Due reports whether enough time has passed since a message's last update
// for its next retry attempt under policy.
func Due(policy config.BackoffPolicy, retryCount int, updatedAt, now time.Time) bool {
	return now.Sub(updatedAt) >= policy.Delay(retryCount)
}

// ExceededMaxAttempts reports whether a message has already used up its
// policy's attempt budget and should be routed to the dead-letter topic
// instead of retried again.
func ExceededMaxAttempts(policy config.BackoffPolicy, retryCount int) bool {
	return policy.MaxAttempts > 0 && retryCount >= policy.MaxAttempts
}
