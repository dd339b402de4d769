package di

import (
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/controllers"
	"strd/internal/providers"
	"strd/internal/relay"
	"strd/internal/structures"
	"strd/internal/usage"
)

// Role-specific constructors. They pin the optional collaborators of each
// process to nil so the shared constructors stay role agnostic.

func provideLogger(conf *structures.Config) (providers.Logger, func(), error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}

func provideForegroundRefresher(conf *structures.Config, engine blocking.EngineInterface, cat *catalog.Catalog, cache providers.CacheProviderInterface, clock providers.Clock, logger providers.Logger) *relay.Refresher {
	return relay.NewRefresher(conf, engine, cat, nil, cache, clock, logger)
}

func provideMonitorRefresher(conf *structures.Config, engine blocking.EngineInterface, cat *catalog.Catalog, agg *usage.Aggregator, cache providers.CacheProviderInterface, clock providers.Clock, logger providers.Logger) *relay.Refresher {
	return relay.NewRefresher(conf, engine, cat, agg, cache, clock, logger)
}

func provideForegroundScheduler(conf *structures.Config, logger providers.Logger, refresher *relay.Refresher, receiver *relay.Receiver) relay.SchedulerInterface {
	return relay.NewScheduler(conf, logger, refresher, nil, receiver, nil)
}

func provideMonitorScheduler(conf *structures.Config, logger providers.Logger, refresher *relay.Refresher, monitor *relay.Monitor, sampling *relay.Sampling) relay.SchedulerInterface {
	return relay.NewScheduler(conf, logger, refresher, monitor, nil, sampling)
}

func provideForegroundHealth(conf *structures.Config, events *relay.EventLog) *controllers.HealthController {
	return controllers.NewHealthController(conf, nil, events)
}

func provideMonitorHealth(conf *structures.Config, monitor *relay.Monitor, events *relay.EventLog) *controllers.HealthController {
	return controllers.NewHealthController(conf, monitor, events)
}

func provideNoReceiver() *relay.Receiver {
	return nil
}
