package cache

import (
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes one Redis endpoint and how keys are namespaced on it.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	IOTimeout    time.Duration
	Prefix       string
}

type RedisOption func(*RedisConfig)

func newRedisConfig(opts ...RedisOption) RedisConfig {
	cfg := RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		IOTimeout:    3 * time.Second,
		Prefix:       "regimechain",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.IOTimeout,
		WriteTimeout: c.IOTimeout,
	}
}

func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) { c.Addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool sizes the connection pool; non-positive values keep the defaults.
func WithRedisPool(size, minIdle int) RedisOption {
	return func(c *RedisConfig) {
		if size > 0 {
			c.PoolSize = size
		}
		if minIdle >= 0 {
			c.MinIdleConns = minIdle
		}
	}
}

// WithRedisTimeouts bounds dialing and each read or write; non-positive values keep the defaults.
func WithRedisTimeouts(dial, io time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if io > 0 {
			c.IOTimeout = io
		}
	}
}

// WithRedisPrefix namespaces every key as "<prefix>:<key>". Empty disables it.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

type memoryConfig struct {
	maxEntries int
	defaultTTL time.Duration
}

type MemoryOption func(*memoryConfig)

// WithMaxEntries bounds the cache; the least recently read key goes first.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithDefaultTTL applies when Set is called with a non-positive ttl.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.defaultTTL = ttl }
}
