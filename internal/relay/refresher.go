package relay

import (
	"context"
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/providers"
	"strd/internal/structures"
	"time"

	"go.uber.org/atomic"
)

type Roller interface {
	RolloverIfStale(ctx context.Context, logicalID string, now time.Time) (bool, error)
}

// Refresher re-evaluates blocking on a timer so time-based reasons such as
// downtime windows take effect without an external event. Every
// forceResyncEvery ticks it forgets the applied state and reissues every
// command. In the monitor role it also closes out stale usage days.
type Refresher struct {
	engine  blocking.EngineInterface
	catalog *catalog.Catalog
	roller  Roller
	cache   providers.CacheProviderInterface
	clock   providers.Clock
	logger  providers.Logger

	forceEvery int64
	ticks      atomic.Int64
}

// NewRefresher builds a refresher. roller may be nil.
func NewRefresher(conf *structures.Config, engine blocking.EngineInterface, cat *catalog.Catalog, roller Roller, cache providers.CacheProviderInterface, clock providers.Clock, logger providers.Logger) *Refresher {
	return &Refresher{
		engine:     engine,
		catalog:    cat,
		roller:     roller,
		cache:      cache,
		clock:      clock,
		logger:     logger,
		forceEvery: int64(conf.Sync.ForceResyncEvery),
	}
}

func (r *Refresher) Ticks() int64 {
	return r.ticks.Load()
}

func (r *Refresher) Tick(ctx context.Context) (blocking.SyncReport, error) {
	if r.roller != nil && r.rollover(ctx) {
		r.cache.Clear()
	}

	tick := r.ticks.Inc()
	if r.forceEvery > 0 && tick%r.forceEvery == 0 {
		r.logger.Debugf(providers.TypeSync, "forcing full resync on tick %d", tick)
		r.engine.Reset()
	}

	report, err := r.engine.SyncAll(ctx, nil)
	if report.Changed() {
		r.cache.Clear()
		r.logger.Infof(providers.TypeSync, "refresh: %d blocked, %d unblocked", report.Blocked, report.Unblocked)
	}
	return report, err
}

func (r *Refresher) rollover(ctx context.Context) bool {
	now := r.clock.Now()
	rolled := false
	for _, app := range r.catalog.Apps() {
		ok, err := r.roller.RolloverIfStale(ctx, app.LogicalID, now)
		if err != nil {
			r.logger.Warnf(providers.TypeUsage, "rollover %s: %s", app.LogicalID, err)
			continue
		}
		rolled = rolled || ok
	}
	return rolled
}
