// This file mirrors what wire emits for wire.go and is kept in step with it
// by hand. Regenerate with `go generate ./internal/di` after changing a provider.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"RegimeChain/internal/middleware"
	"RegimeChain/pkg/config"
	"RegimeChain/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	registry := ProvideRegistry()
	featuresConfig, err := ProvideFeatureConfig(cfg)
	if err != nil {
		return nil, err
	}
	extractor := ProvideExtractor(featuresConfig)
	classifier := ProvideClassifier(cfg)
	tracker := ProvideTracker(cfg)
	synthesizer := ProvideSynthesizer(cfg)
	manualBias := ProvideManualBias()
	marketBias := ProvideMarketBias(cfg, manualBias, tracker)
	metrics := ProvideMetrics(registry)
	producer, err := ProvideKafkaProducer(cfg, registry)
	if err != nil {
		return nil, err
	}
	predictionPublisher := ProvidePublisher(cfg, producer)
	redisCache, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	predictionCache := ProvidePredictionCache(cfg, redisCache)
	client, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	transitionStore := ProvideTransitionStore(cfg, client, logger)
	v := ProvideSinks(cfg, predictionPublisher, predictionCache, transitionStore)
	regimeEngine := ProvideEngine(cfg, extractor, classifier, tracker, synthesizer, marketBias, metrics, logger, v)
	barGate := ProvideBarGate(regimeEngine, metrics)
	chBarStore := ProvideBarStore(client, logger)
	ingestion, err := ProvideIngestion(cfg, barGate, metrics, logger, registry, chBarStore)
	if err != nil {
		return nil, err
	}
	warmup, err := ProvideWarmup(cfg, chBarStore, regimeEngine, logger)
	if err != nil {
		return nil, err
	}
	httpServer := ProvideHTTPServer(cfg, logger, registry, regimeEngine, manualBias, marketBias, client, transitionStore, redisCache, predictionCache)
	app := ProvideApp(cfg, logger, httpServer, ingestion, warmup, producer, redisCache, transitionStore, client)
	return app, nil
}

// InitializeOfflineGate builds an engine with no sinks behind a bar gate, for replays.
func InitializeOfflineGate(cfg *config.Config) (*middleware.BarGate, error) {
	featuresConfig, err := ProvideFeatureConfig(cfg)
	if err != nil {
		return nil, err
	}
	extractor := ProvideExtractor(featuresConfig)
	classifier := ProvideClassifier(cfg)
	tracker := ProvideTracker(cfg)
	synthesizer := ProvideSynthesizer(cfg)
	manualBias := ProvideManualBias()
	marketBias := ProvideMarketBias(cfg, manualBias, tracker)
	registry := ProvideRegistry()
	metrics := ProvideMetrics(registry)
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	v := ProvideNoSinks()
	regimeEngine := ProvideEngine(cfg, extractor, classifier, tracker, synthesizer, marketBias, metrics, logger, v)
	barGate := ProvideBarGate(regimeEngine, metrics)
	return barGate, nil
}
