// Package relay moves state between the monitor and foreground processes:
// usage events with a doorbell notification, periodic refresh, and the
// shield commands read by the enforcement agent.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"time"

	"github.com/google/uuid"
)

const (
	SourceMonitor = "monitor"
	SourceHTTP    = "http"
)

func NewUsageEvent(tokenHash, logicalID string, seconds int, at time.Time, source string) models.UsageEvent {
	return models.UsageEvent{
		ID:         uuid.NewString(),
		TokenHash:  tokenHash,
		LogicalID:  logicalID,
		Seconds:    seconds,
		OccurredAt: at,
		Source:     source,
	}
}

// EventKey orders events by time. The nanosecond stamp is zero padded so
// lexical order matches numeric order.
func EventKey(ev models.UsageEvent) string {
	return fmt.Sprintf("%s%020d-%s", store.PrefixUsageEvent, ev.OccurredAt.UnixNano(), ev.ID)
}

// EventLog is the durable queue of usage events. The monitor publishes, the
// foreground drains; an event belongs to whoever deletes its key first.
type EventLog struct {
	store    store.SharedStore
	codec    *store.Codec
	notifier store.Notifier
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
}

func NewEventLog(s store.SharedStore, codec *store.Codec, notifier store.Notifier, logger providers.Logger, metrics providers.MetricsProviderInterface) *EventLog {
	return &EventLog{
		store:    s,
		codec:    codec,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Publish writes ev and rings the doorbell. A lost notification is healed by
// the periodic drain, so only the write can fail the call.
func (l *EventLog) Publish(ctx context.Context, ev models.UsageEvent) error {
	if err := store.SetJSON(ctx, l.store, l.codec, EventKey(ev), ev); err != nil {
		return err
	}
	l.metrics.IncUsageEvents("published")
	if err := l.notifier.Notify(ctx); err != nil {
		l.logger.Warnf(providers.TypeSync, "notify failed: %s", err)
	}
	return nil
}

// Drain claims pending events in order and hands each to fn. When fn fails
// the event is written back and draining stops.
func (l *EventLog) Drain(ctx context.Context, fn func(context.Context, models.UsageEvent) error) (int, error) {
	keys, err := l.store.List(ctx, store.PrefixUsageEvent)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, key := range keys {
		var ev models.UsageEvent
		if err := store.GetJSON(ctx, l.store, l.codec, key, &ev); err != nil {
			if store.IsNotFound(err) {
				continue
			}
			if errors.Is(err, models.ErrStoreUnavailable) {
				return n, err
			}
			l.logger.Errorf(providers.TypeSync, "dropping unreadable event %s: %s", key, err)
			_, _ = l.store.Delete(ctx, key)
			l.metrics.IncUsageEvents("dropped")
			continue
		}

		claimed, err := l.store.Delete(ctx, key)
		if err != nil {
			return n, err
		}
		if !claimed {
			continue
		}
		l.metrics.IncUsageEvents("claimed")

		if err := fn(ctx, ev); err != nil {
			if perr := store.SetJSON(ctx, l.store, l.codec, key, ev); perr != nil {
				l.logger.Errorf(providers.TypeSync, "event %s lost: %s", key, perr)
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// Pending counts events not yet claimed.
func (l *EventLog) Pending(ctx context.Context) (int, error) {
	keys, err := l.store.List(ctx, store.PrefixUsageEvent)
	return len(keys), err
}
