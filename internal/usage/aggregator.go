// Package usage owns the per-app daily counters and the midnight rollover.
package usage

import (
	"context"
	"fmt"
	"strd/internal/catalog"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"strd/internal/structures"
	"sync"
	"time"
)

// ResetEvent is raised once per app and day when a rollover is observed.
type ResetEvent struct {
	LogicalID   string
	PreviousDay time.Time
	Seconds     int
}

type AggregatorInterface interface {
	RecordUsage(ctx context.Context, logicalID string, secondsDelta, hour int) (models.DailyUsageRecord, error)
	RolloverIfStale(ctx context.Context, logicalID string, now time.Time) (bool, error)
	Record(ctx context.Context, logicalID string) models.DailyUsageRecord
	TodaySeconds(ctx context.Context, logicalID string) int
	TodayMinutes(ctx context.Context, logicalID string) int
	HasHistory(ctx context.Context, logicalID string) bool
	Remove(ctx context.Context, logicalID string) error
	Prune(ctx context.Context, current []string) ([]string, error)
	Subscribe(fn func(ResetEvent))
}

type Aggregator struct {
	store       store.SharedStore
	codec       *store.Codec
	clock       providers.Clock
	catalog     *catalog.Catalog
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	historyDays int

	mu        sync.Mutex
	snapshots map[string]*models.DailyUsageRecord

	subsMu sync.RWMutex
	subs   []func(ResetEvent)
}

func NewAggregator(conf *structures.Config, s store.SharedStore, codec *store.Codec, clock providers.Clock, cat *catalog.Catalog, logger providers.Logger, metrics providers.MetricsProviderInterface) *Aggregator {
	return &Aggregator{
		store:       s,
		codec:       codec,
		clock:       clock,
		catalog:     cat,
		logger:      logger,
		metrics:     metrics,
		historyDays: conf.Usage.HistoryDays,
		snapshots:   make(map[string]*models.DailyUsageRecord),
	}
}

func (a *Aggregator) Subscribe(fn func(ResetEvent)) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	a.subs = append(a.subs, fn)
}

func (a *Aggregator) emit(ev ResetEvent) {
	a.subsMu.RLock()
	subs := append([]func(ResetEvent){}, a.subs...)
	a.subsMu.RUnlock()

	a.logger.Infof(providers.TypeUsage, "daily reset for %s: %ds on %s", ev.LogicalID, ev.Seconds, ev.PreviousDay.Format(time.DateOnly))
	for _, fn := range subs {
		fn(ev)
	}
}

// load reads the stored record. A missing record is a fresh one for today.
func (a *Aggregator) load(ctx context.Context, logicalID string, startOfDay time.Time) (*models.DailyUsageRecord, bool, error) {
	var rec models.DailyUsageRecord
	err := store.GetJSON(ctx, a.store, a.codec, store.UsageRecordKey(logicalID), &rec)
	if err != nil {
		if store.IsNotFound(err) {
			return models.NewDailyUsageRecord(logicalID, startOfDay), false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}

// rollover applies the day change to rec and reports the event to raise,
// if this process has not announced it yet.
func (a *Aggregator) rollover(rec *models.DailyUsageRecord, startOfDay time.Time) *ResetEvent {
	prevDay, prevSeconds := rec.LastResetDate, rec.TodaySeconds
	if !rec.Rollover(startOfDay, a.historyDays) || prevDay.IsZero() {
		return nil
	}
	if snap, ok := a.snapshots[rec.LogicalID]; ok && !snap.LastResetDate.Before(startOfDay) {
		return nil
	}
	return &ResetEvent{LogicalID: rec.LogicalID, PreviousDay: prevDay, Seconds: prevSeconds}
}

// RecordUsage rolls the record over if needed, then credits secondsDelta to
// hour. Nothing changes in memory unless the store write succeeds.
func (a *Aggregator) RecordUsage(ctx context.Context, logicalID string, secondsDelta, hour int) (models.DailyUsageRecord, error) {
	if secondsDelta < 0 {
		return models.DailyUsageRecord{}, fmt.Errorf("negative delta %d: %w", secondsDelta, models.ErrInvalidSample)
	}
	if hour < 0 || hour >= models.HoursPerDay {
		return models.DailyUsageRecord{}, fmt.Errorf("hour %d: %w", hour, models.ErrInvalidSample)
	}

	a.mu.Lock()
	startOfDay := a.clock.StartOfDay(a.clock.Now())
	rec, _, err := a.load(ctx, logicalID, startOfDay)
	if err != nil {
		a.mu.Unlock()
		a.logger.Errorf(providers.TypeUsage, "usage record %s unavailable: %s", logicalID, err)
		return models.DailyUsageRecord{}, err
	}

	ev := a.rollover(rec, startOfDay)
	app, _ := a.catalog.ByLogicalID(logicalID)
	rec.Add(secondsDelta, hour, app.PointsPerMinute)

	if err := store.SetJSON(ctx, a.store, a.codec, store.UsageRecordKey(logicalID), rec); err != nil {
		a.mu.Unlock()
		a.logger.Errorf(providers.TypeUsage, "unable to save usage record %s: %s", logicalID, err)
		return models.DailyUsageRecord{}, err
	}
	a.snapshots[logicalID] = rec.Clone()
	a.mu.Unlock()

	category := string(app.Category)
	if category == "" {
		category = "unknown"
	}
	a.metrics.AddUsageSeconds(category, secondsDelta)
	if ev != nil {
		a.emit(*ev)
	}
	return *rec, nil
}

// RolloverIfStale persists the rollover of a stale record. A second call on
// the same day returns false and writes nothing.
func (a *Aggregator) RolloverIfStale(ctx context.Context, logicalID string, now time.Time) (bool, error) {
	a.mu.Lock()
	startOfDay := a.clock.StartOfDay(now)
	rec, found, err := a.load(ctx, logicalID, startOfDay)
	if err != nil || !found || !rec.NeedsRollover(startOfDay) {
		a.mu.Unlock()
		return false, err
	}

	ev := a.rollover(rec, startOfDay)
	if err := store.SetJSON(ctx, a.store, a.codec, store.UsageRecordKey(logicalID), rec); err != nil {
		a.mu.Unlock()
		return false, err
	}
	a.snapshots[logicalID] = rec.Clone()
	a.mu.Unlock()

	if ev != nil {
		a.emit(*ev)
	}
	return true, nil
}

// Record returns the current day's counters. A stale record is rolled over
// in memory before it is returned; persisting the rollover is left to the
// writer. Unknown apps read as zero and a failing store yields the last
// successfully read record.
func (a *Aggregator) Record(ctx context.Context, logicalID string) models.DailyUsageRecord {
	a.mu.Lock()
	startOfDay := a.clock.StartOfDay(a.clock.Now())
	rec, _, err := a.load(ctx, logicalID, startOfDay)
	if err != nil {
		snap, ok := a.snapshots[logicalID]
		a.mu.Unlock()
		a.logger.Warnf(providers.TypeUsage, "usage record %s unavailable, serving snapshot: %s", logicalID, err)
		if !ok {
			return *models.NewDailyUsageRecord(logicalID, startOfDay)
		}
		rec = snap.Clone()
		rec.Rollover(startOfDay, a.historyDays)
		return *rec
	}

	ev := a.rollover(rec, startOfDay)
	a.snapshots[logicalID] = rec.Clone()
	a.mu.Unlock()

	if ev != nil {
		a.emit(*ev)
	}
	return *rec
}

func (a *Aggregator) TodaySeconds(ctx context.Context, logicalID string) int {
	return a.Record(ctx, logicalID).TodaySeconds
}

func (a *Aggregator) TodayMinutes(ctx context.Context, logicalID string) int {
	rec := a.Record(ctx, logicalID)
	return rec.TodayMinutes()
}

// HasHistory reports whether any usage was ever recorded for logicalID.
func (a *Aggregator) HasHistory(ctx context.Context, logicalID string) bool {
	var rec models.DailyUsageRecord
	if err := store.GetJSON(ctx, a.store, a.codec, store.UsageRecordKey(logicalID), &rec); err != nil {
		// An unreadable record is treated as history so identities stay put.
		return !store.IsNotFound(err)
	}
	return rec.LifetimeSeconds > 0 || rec.TodaySeconds > 0 || len(rec.DailyHistory) > 0
}

// Remove deletes the record of an app the guardian removed.
func (a *Aggregator) Remove(ctx context.Context, logicalID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.store.Delete(ctx, store.UsageRecordKey(logicalID)); err != nil {
		return err
	}
	delete(a.snapshots, logicalID)
	return nil
}

// Prune removes the records of apps listed by the previous run but missing
// from current, then stores current for the next run. It returns the
// removed logical IDs. Records of apps that never were in the catalog stay.
func (a *Aggregator) Prune(ctx context.Context, current []string) ([]string, error) {
	var previous []string
	if err := store.GetJSON(ctx, a.store, a.codec, store.KeyCatalogApps, &previous); err != nil && !store.IsNotFound(err) {
		return nil, err
	}

	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	var removed []string
	for _, id := range previous {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := a.Remove(ctx, id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, store.SetJSON(ctx, a.store, a.codec, store.KeyCatalogApps, current)
}
