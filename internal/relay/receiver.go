package relay

import (
	"context"
	"errors"
	"strd/internal/blocking"
	"strd/internal/ledger"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"sync"
)

type Consumer interface {
	Consume(ctx context.Context, tokenHash string, usageSeconds int) (ledger.ConsumeOutcome, error)
}

type Syncer interface {
	SyncAll(ctx context.Context, tokens []string) (blocking.SyncReport, error)
}

// Receiver applies usage events in the foreground process. It wakes on the
// doorbell, and the scheduler drains it periodically in case a ring is lost.
type Receiver struct {
	events   *EventLog
	notifier store.Notifier
	ledger   Consumer
	engine   Syncer
	cache    providers.CacheProviderInterface
	logger   providers.Logger

	mu sync.Mutex
}

func NewReceiver(events *EventLog, notifier store.Notifier, l Consumer, engine Syncer, cache providers.CacheProviderInterface, logger providers.Logger) *Receiver {
	return &Receiver{
		events:   events,
		notifier: notifier,
		ledger:   l,
		engine:   engine,
		cache:    cache,
		logger:   logger,
	}
}

// Drain consumes every pending event and resyncs blocking when any was
// applied. Concurrent calls are serialized.
func (r *Receiver) Drain(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.events.Drain(ctx, func(ctx context.Context, ev models.UsageEvent) error {
		out, err := r.ledger.Consume(ctx, ev.TokenHash, ev.Seconds)
		if err != nil {
			return err
		}
		if out.Expired {
			r.logger.Infof(providers.TypeLedger, "reward time for %s ran out", ev.LogicalID)
		}
		return nil
	})
	if n == 0 {
		return 0, err
	}

	r.cache.Clear()
	if _, serr := r.engine.SyncAll(ctx, nil); serr != nil {
		r.logger.Warnf(providers.TypeSync, "resync after %d events: %s", n, serr)
		err = errors.Join(err, serr)
	}
	return n, err
}

// Run drains on every notification until ctx is done. Pending events are
// drained once on start.
func (r *Receiver) Run(ctx context.Context) error {
	ch, err := r.notifier.Subscribe(ctx)
	if err != nil {
		return err
	}
	r.drainLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			r.drainLogged(ctx)
		}
	}
}

func (r *Receiver) drainLogged(ctx context.Context) {
	n, err := r.Drain(ctx)
	if err != nil {
		r.logger.Errorf(providers.TypeSync, "drain usage events: %s", err)
	}
	if n > 0 {
		r.logger.Debugf(providers.TypeSync, "applied %d usage events", n)
	}
}
