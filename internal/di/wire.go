//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	mid "RegimeChain/internal/middleware"
	"RegimeChain/pkg/config"
	"RegimeChain/pkg/server"
)

var engineSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideFeatureConfig,
	ProvideExtractor,
	ProvideClassifier,
	ProvideTracker,
	ProvideSynthesizer,
	ProvideManualBias,
	ProvideMarketBias,
	ProvideEngine,
	ProvideBarGate,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		engineSet,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,

		// Repositories and sinks
		ProvideBarStore,
		ProvideTransitionStore,
		ProvidePublisher,
		ProvidePredictionCache,
		ProvideSinks,

		// Ingestion and lifecycle
		ProvideIngestion,
		ProvideWarmup,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeOfflineGate builds an engine with no sinks behind a bar gate, for replays.
func InitializeOfflineGate(cfg *config.Config) (*mid.BarGate, error) {
	wire.Build(engineSet, ProvideNoSinks)
	return &mid.BarGate{}, nil
}
