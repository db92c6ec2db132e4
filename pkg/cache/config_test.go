package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisOptions(t *testing.T) {
	o := newRedisConfig(
		WithRedisAddr("redis", 6380),
		WithRedisAuth("secret", 2),
		WithRedisPool(20, 4),
		WithRedisTimeouts(2*time.Second, 500*time.Millisecond),
	).options()

	assert.Equal(t, "redis:6380", o.Addr)
	assert.Equal(t, "secret", o.Password)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 20, o.PoolSize)
	assert.Equal(t, 4, o.MinIdleConns)
	assert.Equal(t, 2*time.Second, o.DialTimeout)
	assert.Equal(t, 500*time.Millisecond, o.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, o.WriteTimeout)
}

func TestRedisOptions_ZeroTimeoutsKeepDefaults(t *testing.T) {
	cfg := newRedisConfig(WithRedisTimeouts(0, 0))
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.IOTimeout)
	assert.Equal(t, "regimechain", cfg.Prefix)
}
