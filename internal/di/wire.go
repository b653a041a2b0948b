//go:build wireinject
// +build wireinject

package di

import (
	"MacroChain/pkg/config"
	"MacroChain/pkg/server"

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
		ProvideStorage,
		ProvideRedisCache,
		ProvideCache,

		// Repositories
		ProvideDocumentStore,
		ProvideChainStore,
		ProvideChainPublisher,
		ProvideDocumentPublisher,
		ProvideDocumentStream,

		// Extraction
		ProvidePatterns,
		ProvideRegistry,
		ProvideExtractor,

		// Use cases
		ProvideChainExtractor,
		ProvideChainQuery,
		ProvideExtractJob,
		ProvideJobQueue,
		ProvideEnqueuer,
		ProvideDocumentProcessor,
		ProvideDocumentCollector,
		ProvideKafkaConsumer,
		ProvideKafkaDocumentsHandler,

		// Transport
		ProvideChainsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeBackfill wires the stores and the extractor for offline re-extraction.
func InitializeBackfill(cfg *config.Config) (*Backfill, error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideStorage,
		ProvideRedisCache,
		ProvideCache,
		ProvideDocumentStore,
		ProvideChainStore,
		ProvideChainPublisher,
		ProvidePatterns,
		ProvideRegistry,
		ProvideExtractor,
		ProvideChainExtractor,
		ProvideBackfill,
	)
	return &Backfill{}, nil
}
