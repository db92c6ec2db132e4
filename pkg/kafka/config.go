package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProducerConfig is applied to the underlying kafka.Writer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
	HashByKey    bool
	Registerer   prometheus.Registerer
}

type ProducerOption func(*ProducerConfig)

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithDelivery sets acks (-1 waits for all in-sync replicas), write attempts
// and the per-write timeout. Zero attempts or timeout keep the defaults.
func WithDelivery(acks, attempts int, timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		if attempts > 0 {
			c.MaxAttempts = attempts
		}
		if timeout > 0 {
			c.WriteTimeout = timeout
		}
	}
}

// WithBatching flushes every size messages or linger, whichever comes first.
// Async writes return before the broker acknowledges them.
func WithBatching(size int, linger time.Duration, async bool) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
		c.Async = async
	}
}

// WithCompression accepts gzip, snappy, lz4, zstd or none.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithLeastBytes spreads messages by partition load instead of hashing the
// key. Per-symbol ordering is lost.
func WithLeastBytes() ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = false }
}

func WithProducerRegisterer(reg prometheus.Registerer) ProducerOption {
	return func(c *ProducerConfig) { c.Registerer = reg }
}
