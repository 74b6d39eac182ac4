package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/models"
)

func TestPolicyForPermanentRoutesToDLQWhenConfigured(t *testing.T) {
	cfg := config.RetryConfig{PermanentToDLQImmediately: true}
	_, dlq := PolicyFor(cfg, models.FailurePermanent)
	assert.True(t, dlq)
}

func TestPolicyForTransientUsesTransientPolicy(t *testing.T) {
	cfg := config.RetryConfig{TransientPolicy: config.BackoffPolicy{Base: time.Second, MaxAttempts: 3}}
	policy, dlq := PolicyFor(cfg, models.FailureTransient)
	assert.False(t, dlq)
	assert.Equal(t, 3, policy.MaxAttempts)
}

func TestDue(t *testing.T) {
	policy := config.BackoffPolicy{Base: time.Second, Multiplier: 2, Max: time.Minute}
	now := time.Now()
	assert.False(t, Due(policy, 0, now, now))
	assert.True(t, Due(policy, 0, now.Add(-2*time.Second), now))
}

func TestExceededMaxAttempts(t *testing.T) {
	policy := config.BackoffPolicy{MaxAttempts: 3}
	assert.False(t, ExceededMaxAttempts(policy, 2))
	assert.True(t, ExceededMaxAttempts(policy, 3))
}
