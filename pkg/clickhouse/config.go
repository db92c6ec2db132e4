package clickhouse

import (
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Config is the connection setup. Server-side settings are sent with every query.
type Config struct {
	Addrs    []string
	Database string
	User     string
	Password string
	HTTP     bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration

	Settings ch.Settings
}

type Option func(*Config)

// WithAddr adds a server; repeated calls build a failover list.
func WithAddr(host string, port int) Option {
	return func(c *Config) {
		c.Addrs = append(c.Addrs, net.JoinHostPort(host, strconv.Itoa(port)))
	}
}

func WithAuth(database, user, password string) Option {
	return func(c *Config) {
		if database != "" {
			c.Database = database
		}
		c.User = user
		c.Password = password
	}
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

func WithTimeouts(dial, read time.Duration) Option {
	return func(c *Config) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(on bool) Option {
	return func(c *Config) { c.HTTP = on }
}

// WithSetting sets one server setting such as max_execution_time.
func WithSetting(name string, value any) Option {
	return func(c *Config) {
		if c.Settings == nil {
			c.Settings = ch.Settings{}
		}
		c.Settings[name] = value
	}
}

// WithAsyncInsert lets the server buffer small inserts; wait makes the insert
// return only after the buffer is flushed.
func WithAsyncInsert(enabled, wait bool) Option {
	return func(c *Config) {
		if !enabled {
			return
		}
		WithSetting("async_insert", 1)(c)
		if wait {
			WithSetting("wait_for_async_insert", 1)(c)
		} else {
			WithSetting("wait_for_async_insert", 0)(c)
		}
	}
}

// WithMaxExecutionTime caps server-side query time, rounded down to seconds.
func WithMaxExecutionTime(d time.Duration) Option {
	return func(c *Config) {
		if s := int(d / time.Second); s > 0 {
			WithSetting("max_execution_time", s)(c)
		}
	}
}

func (c Config) options() *ch.Options {
	proto := ch.Native
	if c.HTTP {
		proto = ch.HTTP
	}
	return &ch.Options{
		Protocol: proto,
		Addr:     c.Addrs,
		Auth: ch.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password,
		},
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		Settings:        c.Settings,
	}
}
