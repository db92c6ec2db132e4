package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"RegimeChain/internal/domain/repository"
	"RegimeChain/internal/handler/api"
	mid "RegimeChain/internal/middleware"
	internalrepo "RegimeChain/internal/repository"
	"RegimeChain/internal/service/finnhub"
	"RegimeChain/internal/service/ratelimit"
	"RegimeChain/internal/services/correlation"
	"RegimeChain/internal/services/features"
	"RegimeChain/internal/services/markov"
	"RegimeChain/internal/services/prediction"
	"RegimeChain/internal/services/regime"
	"RegimeChain/internal/usecase"
	"RegimeChain/pkg/cache"
	pkgch "RegimeChain/pkg/clickhouse"
	"RegimeChain/pkg/config"
	xhttp "RegimeChain/pkg/http"
	pkgkafka "RegimeChain/pkg/kafka"
	applogger "RegimeChain/pkg/logger"
	"RegimeChain/pkg/metrics"
	"RegimeChain/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates a private registry with the Go and process collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideFeatureConfig maps engine settings and configured sessions onto the extractor.
func ProvideFeatureConfig(cfg *config.Config) (features.Config, error) {
	fc := features.DefaultConfig()
	fc.Window = cfg.Engine.HistoryWindow
	fc.MinHistory = cfg.Engine.MinHistory
	if len(cfg.Engine.Sessions) == 0 {
		return fc, nil
	}

	windows := make([]features.SessionWindow, 0, len(cfg.Engine.Sessions))
	for _, s := range cfg.Engine.Sessions {
		name, err := features.ParseSession(s.Name)
		if err != nil {
			return fc, err
		}
		start, err := features.ParseClock(s.Start)
		if err != nil {
			return fc, err
		}
		end, err := features.ParseClock(s.End)
		if err != nil {
			return fc, err
		}
		if end <= start {
			return fc, fmt.Errorf("session %s ends before it starts", s.Name)
		}
		loc := time.UTC
		if s.Timezone != "" {
			if loc, err = time.LoadLocation(s.Timezone); err != nil {
				return fc, fmt.Errorf("session %s: %w", s.Name, err)
			}
		}
		windows = append(windows, features.SessionWindow{Session: name, Start: start, End: end, Location: loc})
	}
	fc.Schedule = features.SessionSchedule{Windows: windows}
	return fc, nil
}

func ProvideExtractor(fc features.Config) *features.Extractor {
	return features.NewExtractor(fc)
}

func ProvideClassifier(cfg *config.Config) *regime.Classifier {
	t := regime.DefaultThresholds()
	t.SessionOverrides = cfg.Engine.SessionOverrides
	return regime.NewClassifier(regime.WithThresholds(t))
}

func ProvideTracker(cfg *config.Config) *correlation.Tracker {
	return correlation.NewTracker(correlation.Config{
		Window:          cfg.Engine.CorrelationWindow,
		MinObservations: cfg.Engine.CorrelationMinObs,
		MinInfluence:    cfg.Engine.MinInfluence,
	})
}

func ProvideSynthesizer(cfg *config.Config) *prediction.Synthesizer {
	pc := prediction.DefaultConfig()
	pc.ImpactWeight = cfg.Engine.ImpactWeight
	pc.MinInfluence = cfg.Engine.MinInfluence
	pc.MinSamples = cfg.Engine.MinSamples
	return prediction.NewSynthesizer(pc)
}

func ProvideManualBias() *usecase.ManualBias {
	return usecase.NewManualBias()
}

// ProvideMarketBias prefers the operator override and falls back to breadth across tracked symbols.
func ProvideMarketBias(cfg *config.Config, manual *usecase.ManualBias, tracker *correlation.Tracker) *usecase.MarketBias {
	return &usecase.MarketBias{
		Manual:  manual,
		Breadth: usecase.NewBreadthBias(tracker, cfg.Engine.BreadthThreshold),
	}
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, nil
}

// ProvideBarStore reads and writes bars in ClickHouse; nil without a client.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHBarStore {
	if ch == nil {
		return nil
	}
	s := internalrepo.NewCHBarStore(ch)
	s.SetLogger(l)
	return s
}

func ProvideTransitionStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.TransitionStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHTransitionStore(ch, internalrepo.BreakerConfig{
		ConsecutiveFailures: cfg.ClickHouse.Breaker.Failures,
		OpenTimeout:         cfg.ClickHouse.Breaker.OpenTimeout,
	}, l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when publishing is off.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.PublishEnabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger, cfg.Kafka.Producer.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.PredictionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PredictionsTopic, cfg.Kafka.TransitionsTopic)
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2),
		cache.WithRedisTimeouts(cfg.Redis.DialTimeout, cfg.Redis.IOTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvidePredictionCache keeps the latest prediction per symbol in Redis, or
// in process when Redis is disabled.
func ProvidePredictionCache(cfg *config.Config, rc *cache.RedisCache) repository.PredictionCache {
	if rc == nil {
		mc := cache.NewMemoryCache(
			cache.WithMaxEntries(cfg.Redis.LocalEntries),
			cache.WithDefaultTTL(cfg.Redis.TTL),
		)
		return internalrepo.NewCachedPredictions(mc, cfg.Redis.TTL)
	}
	return internalrepo.NewCachedPredictions(rc, cfg.Redis.TTL)
}

// ProvideSinks collects every configured prediction sink.
func ProvideSinks(cfg *config.Config, pub repository.PredictionPublisher, pc repository.PredictionCache, store repository.TransitionStore) []usecase.PredictionSink {
	var sinks []usecase.PredictionSink
	if pub != nil {
		sinks = append(sinks, usecase.NewPublisherSink(pub))
	}
	if pc != nil {
		sinks = append(sinks, usecase.NewCacheSink(pc))
	}
	if store != nil {
		sinks = append(sinks, usecase.NewStoreSink(store, cfg.ClickHouse.StorePredictions))
	}
	return sinks
}

func ProvideEngine(
	cfg *config.Config,
	x *features.Extractor,
	c *regime.Classifier,
	t *correlation.Tracker,
	s *prediction.Synthesizer,
	bias *usecase.MarketBias,
	m repository.Metrics,
	l *applogger.Logger,
	sinks []usecase.PredictionSink,
) *usecase.RegimeEngine {
	lc := markov.DefaultConfig()
	lc.MaxRecords = cfg.Engine.MaxRecords
	lc.MaxReturns = cfg.Engine.MaxReturns
	lc.MaxDurations = cfg.Engine.MaxDurations
	lc.MinSamples = cfg.Engine.MinSamples

	return usecase.NewRegimeEngine(
		usecase.EngineConfig{HistoryWindow: cfg.Engine.HistoryWindow, Learner: lc},
		usecase.WithExtractor(x),
		usecase.WithClassifier(c),
		usecase.WithTracker(t),
		usecase.WithSynthesizer(s),
		usecase.WithMarketBias(bias),
		usecase.WithEngineMetrics(m),
		usecase.WithEngineLogger(l),
		usecase.WithSinks(sinks...),
	)
}

// ProvideBarGate puts validation and ordering in front of the engine.
func ProvideBarGate(engine *usecase.RegimeEngine, m repository.Metrics) *mid.BarGate {
	return mid.NewBarGate(engine, m)
}

// ProvideIngestion builds the configured bar source.
func ProvideIngestion(
	cfg *config.Config,
	gate *mid.BarGate,
	m repository.Metrics,
	l *applogger.Logger,
	reg *prometheus.Registry,
	bars *internalrepo.CHBarStore,
) (server.Ingestion, error) {
	switch cfg.Ingest.Source {
	case "kafka":
		consumer, err := pkgkafka.NewConsumer(
			pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
			pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
			pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
			pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
			pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
			pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
			pkgkafka.WithConsumerLogger(l),
			pkgkafka.WithConsumerRegisterer(reg),
		)
		if err != nil {
			return server.Ingestion{}, fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.AddHooks(pkgkafka.TraceHook(), pkgkafka.KeyHook(false))
		return server.Ingestion{
			Consumer: consumer,
			Handler:  usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, gate, m),
		}, nil

	case "finnhub":
		stream := finnhub.New(finnhub.Config{
			APIKey:            cfg.Finnhub.APIKey,
			URL:               cfg.Finnhub.WebSocketURL,
			Symbols:           cfg.Symbols,
			PingInterval:      cfg.Finnhub.PingInterval,
			ReconnectDelay:    cfg.Finnhub.ReconnectDelay,
			MaxReconnectDelay: cfg.Finnhub.MaxReconnectDelay,
			Buffer:            cfg.Finnhub.Buffer,
		}, l)
		opts := []usecase.CollectorOption{usecase.WithFlushInterval(cfg.Ingest.FlushInterval)}
		if cfg.Ingest.PersistBars && bars != nil {
			tf, err := timeframeFor(cfg.Ingest.BarInterval)
			if err != nil {
				return server.Ingestion{}, err
			}
			opts = append(opts, usecase.WithBarWriter(bars, tf))
		}
		agg := usecase.NewBarAggregator(cfg.Ingest.BarInterval)
		return server.Ingestion{
			Collector: usecase.NewTradeCollector(stream, agg, gate, m, l, opts...),
		}, nil

	default:
		return server.Ingestion{}, nil
	}
}

// ProvideWarmup replays stored bars on start; nil without a bar store.
func ProvideWarmup(cfg *config.Config, bars *internalrepo.CHBarStore, engine *usecase.RegimeEngine, l *applogger.Logger) (*usecase.Warmup, error) {
	if bars == nil || cfg.Ingest.WarmupMultiplier == 0 {
		return nil, nil
	}
	tf, err := timeframeFor(cfg.Ingest.BarInterval)
	if err != nil {
		return nil, err
	}
	n := cfg.Engine.HistoryWindow * cfg.Ingest.WarmupMultiplier
	return usecase.NewWarmup(bars, engine, tf, n, l), nil
}

// ProvideHTTPServer creates the introspection API with health checks for live dependencies.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	engine *usecase.RegimeEngine,
	manual *usecase.ManualBias,
	bias *usecase.MarketBias,
	ch *pkgch.Client,
	store repository.TransitionStore,
	rc *cache.RedisCache,
	pc repository.PredictionCache,
) *xhttp.Server {
	h := api.NewRegimeEchoHandler(l, engine, manual, bias)
	if pc != nil {
		h.SetPredictionCache(pc)
	}
	if ch != nil {
		h.AddHealthCheck("clickhouse", ch.Health)
	}
	if store != nil {
		h.AddHealthCheck("transition_store", store.Health)
	}
	if rc != nil {
		h.AddHealthCheck("redis", rc.Ping)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithLogger(l),
	}
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	opts = append(opts, xhttp.WithMetrics(path, reg, reg))
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimiter(
			ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, 10*time.Minute),
		))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp assembles the lifecycle. Optional components that were not
// configured arrive as nil and are left out.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	ingest server.Ingestion,
	warm *usecase.Warmup,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
	store repository.TransitionStore,
	ch *pkgch.Client,
) *server.App {
	opts := []server.AppOption{
		server.WithIngestion(ingest),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if warm != nil {
		opts = append(opts, server.WithWarmup(warm, cfg.Symbols, 0))
	}
	if producer != nil {
		opts = append(opts, server.WithResources(server.Resource{Name: "kafka producer", Close: producer.Close}))
	}
	if rc != nil {
		opts = append(opts, server.WithResources(server.Resource{Name: "redis", Close: rc.Close}))
	}
	if store != nil {
		opts = append(opts, server.WithResources(server.Resource{Name: "transition store", Close: store.Close}))
	}
	if ch != nil {
		opts = append(opts, server.WithResources(server.Resource{Name: "clickhouse", Close: ch.Close}))
	}
	return server.New(l, srv, opts...)
}

func timeframeFor(d time.Duration) (repository.Timeframe, error) {
	for _, tf := range []repository.Timeframe{repository.TF1m, repository.TF5m, repository.TF15m, repository.TF1h} {
		if tf.Duration() == d {
			return tf, nil
		}
	}
	return "", fmt.Errorf("no bar table for interval %s", d)
}

// ProvideNoSinks is the sink set of offline runs.
func ProvideNoSinks() []usecase.PredictionSink { return nil }
