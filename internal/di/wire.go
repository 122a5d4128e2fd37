//go:build wireinject
// +build wireinject

package di

import (
	"SignalFleet/pkg/config"
	"SignalFleet/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideEventChannel,
		ProvideCache,
		ProvideProber,
		ProvideRepositoryLookup,
		ProvideBreakerSettings,

		// Repositories
		ProvideReportStore,
		ProvideIdempotencyStore,

		// Use cases
		ProvideFleetValidator,
		ProvideDataflowCorrelator,
		ProvideScriptValidator,
		ProvideSignalIngest,
		ProvideSignalProcessor,
		ProvideValidationScheduler,

		// Transport
		ProvideKafkaConsumer,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
