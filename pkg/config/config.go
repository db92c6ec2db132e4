package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string   `yaml:"environment" default:"development" validate:"required"`
	Symbols     []string `yaml:"symbols" validate:"required,min=1,dive,required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled" default:"true"`
			RPS     float64 `yaml:"rps" default:"20" validate:"gt=0"`
			Burst   int     `yaml:"burst" default:"40" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Engine EngineConfig `yaml:"engine"`

	Ingest struct {
		Source           string        `yaml:"source" default:"kafka" validate:"oneof=kafka finnhub none"`
		BarInterval      time.Duration `yaml:"bar_interval" default:"1m"`
		FlushInterval    time.Duration `yaml:"flush_interval" default:"1s"`
		WarmupMultiplier int           `yaml:"warmup_multiplier" default:"5" validate:"min=0"`
		PersistBars      bool          `yaml:"persist_bars"`
	} `yaml:"ingest"`

	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		BarsTopic        string   `yaml:"bars_topic" default:"market.bars.1m"`
		PredictionsTopic string   `yaml:"predictions_topic" default:"regime.predictions"`
		TransitionsTopic string   `yaml:"transitions_topic" default:"regime.transitions"`
		PublishEnabled   bool     `yaml:"publish_enabled"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=snappy gzip lz4 zstd"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"regimechain"`
			Workers    int           `yaml:"workers" default:"4" validate:"min=1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"market.bars.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"regimechain"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema       bool          `yaml:"init_schema" default:"true"`
		StorePredictions bool          `yaml:"store_predictions"`
		Breaker          struct {
			Failures    uint32        `yaml:"failures" default:"5"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
		} `yaml:"breaker"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		PoolSize    int           `yaml:"pool_size" default:"10"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		IOTimeout   time.Duration `yaml:"io_timeout" default:"3s"`
		Prefix      string        `yaml:"prefix" default:"regimechain"`
		TTL         time.Duration `yaml:"ttl" default:"1h"`
		// LocalEntries bounds the in-process prediction cache used when Redis is disabled.
		LocalEntries int `yaml:"local_entries" default:"10000"`
	} `yaml:"redis"`

	Finnhub struct {
		APIKey            string        `yaml:"api_key"`
		WebSocketURL      string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"1s"`
		MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" default:"1m"`
		PingInterval      time.Duration `yaml:"ping_interval" default:"30s"`
		Buffer            int           `yaml:"buffer" default:"1024" validate:"min=1"`
	} `yaml:"finnhub"`
}

// EngineConfig tunes the regime pipeline.
type EngineConfig struct {
	HistoryWindow     int       `yaml:"history_window" default:"100" validate:"min=10"`
	MinHistory        int       `yaml:"min_history" default:"10" validate:"min=2"`
	MaxRecords        int       `yaml:"max_records" default:"5000" validate:"min=1"`
	MaxReturns        int       `yaml:"max_returns" default:"100" validate:"min=1"`
	MaxDurations      int       `yaml:"max_durations" default:"100" validate:"min=1"`
	MinSamples        int       `yaml:"min_samples" default:"20" validate:"min=1"`
	ImpactWeight      float64   `yaml:"impact_weight" default:"0.3" validate:"gte=0,lte=1"`
	MinInfluence      float64   `yaml:"min_influence" default:"0.3" validate:"gte=0,lte=1"`
	CorrelationWindow int       `yaml:"correlation_window" default:"100" validate:"min=2"`
	CorrelationMinObs int       `yaml:"correlation_min_observations" default:"20" validate:"min=2"`
	BreadthThreshold  float64   `yaml:"breadth_threshold" default:"0.6" validate:"gt=0.5,lte=1"`
	SessionOverrides  bool      `yaml:"session_overrides" default:"true"`
	Sessions          []Session `yaml:"sessions" validate:"dive"`
}

// Session is one named trading window in "HH:MM" wall-clock time of
// Timezone, an IANA name. An empty Timezone means UTC.
type Session struct {
	Name     string `yaml:"name" validate:"oneof=asia london new_york"`
	Start    string `yaml:"start" validate:"required"`
	End      string `yaml:"end" validate:"required"`
	Timezone string `yaml:"tz"`
}

var validate = validator.New()

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse builds a Config from YAML bytes. Missing fields take their defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v := getenv("INGEST_SOURCE"); v != "" {
		c.Ingest.Source = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Ingest.Source == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when ingest.source is kafka")
	}
	if c.Kafka.PublishEnabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.publish_enabled is set")
	}
	if c.Ingest.Source == "finnhub" && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when ingest.source is finnhub")
	}
	if c.Engine.MinHistory > c.Engine.HistoryWindow {
		return fmt.Errorf("engine.min_history (%d) exceeds engine.history_window (%d)",
			c.Engine.MinHistory, c.Engine.HistoryWindow)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
