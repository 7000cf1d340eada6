//go:build wireinject
// +build wireinject

package di

import (
	"AgriCast/pkg/config"
	"AgriCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideClickHouseClient,

		// Repositories
		ProvidePredictionLog,
		ProvideCache,
		ProvideJobStore,
		ProvideJobEventPublisher,

		// Models and use cases
		ProvideRegistry,
		ProvideYieldEstimator,
		ProvideForecastEngine,
		ProvideAnomalyEngine,
		ProvideOrchestrator,
		ProvideTrainingQueue,
		ProvideKafkaConsumer,

		// Transport
		ProvideRouter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
