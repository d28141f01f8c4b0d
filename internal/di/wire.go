//go:build wireinject
// +build wireinject

package di

import (
	"RegimeLab/internal/domain/repository"
	"RegimeLab/pkg/config"
	"RegimeLab/pkg/metrics"
	"RegimeLab/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideBytesCache,
)

var repositorySet = wire.NewSet(
	ProvideCHStore,
	ProvideCSVStore,
	ProvideObservationSource,
	ProvideSignalSource,
	ProvideLabeledWriter,
	ProvideResultStore,
	ProvideReportPublisher,
	ProvidePriceProvider,
)

var usecaseSet = wire.NewSet(
	ProvideClassifierFactory,
	ProvideClassifier,
	ProvideEngine,
	ProvideChartRenderer,
	ProvideSummaryWriter,
	ProvideReportGenerator,
	ProvideClassifyTable,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		usecaseSet,

		// HTTP
		ProvideHealthChecks,
		ProvideHTTPHandler,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}
