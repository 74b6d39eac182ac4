package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicyDelay(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Multiplier: 2, Max: 60 * time.Second, MaxAttempts: 3}

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
}

func TestBackoffPolicyDelayCapsAtMax(t *testing.T) {
	p := BackoffPolicy{Base: 5 * time.Second, Multiplier: 2, Max: 300 * time.Second, MaxAttempts: 5}

	assert.Equal(t, 300*time.Second, p.Delay(10))
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: 5432, Name: "notify", User: "u", Password: "p", SSLMode: "disable"}
	assert.Contains(t, d.DSN(), "host=localhost")
	assert.Contains(t, d.DSN(), "dbname=notify")
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", r.Addr())
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Name: "notify"},
		Redis:    RedisConfig{Host: "localhost"},
		Retry:    RetryConfig{BatchSize: 10, IntervalSeconds: 60},
	}
	assert.NoError(t, cfg.validate())

	bad := *cfg
	bad.Server.Port = 0
	assert.Error(t, bad.validate())
}
