//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"strd/internal"
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/controllers"
	"strd/internal/identity"
	"strd/internal/ledger"
	"strd/internal/providers"
	"strd/internal/relay"
	"strd/internal/store"
	"strd/internal/structures"
	"strd/internal/usage"
)

var coreSet = wire.NewSet(
	providers.NewConfigProvider,
	provideLogger,
	providers.NewMetricsProvider,
	providers.NewInstrumentedCacheProvider,
	providers.NewClock,

	store.NewRedisClient,
	store.NewSharedStore,
	store.NewNotifier,
	store.NewZstdCompressor,
	store.NewCodecProvider,

	catalog.New,
	identity.NewResolver,
	usage.NewAggregator,
	ledger.NewBook,
	ledger.NewGoals,
	relay.NewShieldPublisher,
	blocking.NewEngine,
	relay.NewEventLog,
	internal.NewBootstrap,
	internal.NewApp,

	wire.Bind(new(ledger.UsageReader), new(*usage.Aggregator)),
	wire.Bind(new(blocking.UsageReader), new(*usage.Aggregator)),
	wire.Bind(new(blocking.GoalProgress), new(*ledger.Goals)),
	wire.Bind(new(blocking.UnlockState), new(*ledger.Book)),
	wire.Bind(new(blocking.HandleSource), new(*identity.Resolver)),
	wire.Bind(new(blocking.Blocker), new(*relay.ShieldPublisher)),
	wire.Bind(new(blocking.EngineInterface), new(*blocking.Engine)),
)

func InitForeground(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		coreSet,
		ledger.NewLedger,
		relay.NewReceiver,
		provideForegroundRefresher,
		provideForegroundScheduler,
		provideForegroundHealth,
		controllers.NewApiController,
		internal.InitForegroundRoutes,

		wire.Bind(new(ledger.Gate), new(*blocking.Engine)),
		wire.Bind(new(ledger.LedgerInterface), new(*ledger.Ledger)),
		wire.Bind(new(relay.Consumer), new(*ledger.Ledger)),
		wire.Bind(new(relay.Syncer), new(*blocking.Engine)),
		wire.Bind(new(controllers.GoalReader), new(*ledger.Goals)),
		wire.Bind(new(controllers.UsageRecords), new(*usage.Aggregator)),
		wire.Bind(new(controllers.ShieldReader), new(*relay.ShieldPublisher)),
	)

	return nil, nil, nil
}

func InitMonitor(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		coreSet,
		relay.NewMonitor,
		relay.NewSampling,
		provideNoReceiver,
		provideMonitorRefresher,
		provideMonitorScheduler,
		provideMonitorHealth,
		controllers.NewUsageController,
		internal.InitMonitorRoutes,

		wire.Bind(new(identity.ResolverInterface), new(*identity.Resolver)),
		wire.Bind(new(relay.Recorder), new(*usage.Aggregator)),
		wire.Bind(new(relay.UnlockLookup), new(*ledger.Book)),
		wire.Bind(new(relay.MonitorInterface), new(*relay.Monitor)),
	)

	return nil, nil, nil
}
