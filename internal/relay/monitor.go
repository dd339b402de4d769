package relay

import (
	"context"
	"errors"
	"strd/internal/catalog"
	"strd/internal/identity"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"sync"

	"go.uber.org/atomic"
)

type sampleBuffer struct {
	atomic.Bool
	data []models.UsageSample
}

// Recorder is the usage aggregator as seen from the monitor.
type Recorder interface {
	RecordUsage(ctx context.Context, logicalID string, secondsDelta, hour int) (models.DailyUsageRecord, error)
}

// UnlockLookup reads the per-app unlock projection the foreground writes.
type UnlockLookup interface {
	Projected(ctx context.Context, tokenHash string) (*models.UnlockedRewardApp, error)
}

type MonitorInterface interface {
	Enqueue(sample models.UsageSample) error
	Pending() int
	Flush(ctx context.Context) (int, error)
	Sample(ctx context.Context, sampler UsageSampler, handles []models.AppHandle) int
}

// Monitor collects usage samples in a double buffer. Enqueue appends to the
// active buffer; Flush swaps buffers and records the retired one, so
// sampling never waits on the store.
type Monitor struct {
	catalog  *catalog.Catalog
	resolver identity.ResolverInterface
	usage    Recorder
	unlocks  UnlockLookup
	events   *EventLog
	clock    providers.Clock
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface

	mu         sync.Mutex
	buf1, buf2 sampleBuffer
	unsent     []models.UsageEvent

	seenMu sync.Mutex
	seen   map[string]struct{}
}

func NewMonitor(cat *catalog.Catalog, resolver identity.ResolverInterface, usage Recorder, unlocks UnlockLookup, events *EventLog, clock providers.Clock, logger providers.Logger, metrics providers.MetricsProviderInterface) *Monitor {
	m := &Monitor{
		catalog:  cat,
		resolver: resolver,
		usage:    usage,
		unlocks:  unlocks,
		events:   events,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		seen:     make(map[string]struct{}),
	}
	m.buf1.data = make([]models.UsageSample, 0)
	m.buf2.data = make([]models.UsageSample, 0)
	m.buf1.Store(true)
	m.buf2.Store(false)
	return m
}

func (m *Monitor) active() *sampleBuffer {
	if m.buf1.Load() {
		return &m.buf1
	}
	return &m.buf2
}

func (m *Monitor) inactive() *sampleBuffer {
	if m.buf1.Load() {
		return &m.buf2
	}
	return &m.buf1
}

func (m *Monitor) switchBuffer() {
	m.buf1.Store(!m.buf1.Load())
	m.buf2.Store(!m.buf2.Load())
}

// Enqueue buffers sample. Zero-length samples are dropped silently.
func (m *Monitor) Enqueue(sample models.UsageSample) error {
	if len(sample.Handle) == 0 || sample.Seconds < 0 {
		return models.ErrInvalidSample
	}
	if sample.Seconds == 0 {
		return nil
	}
	if sample.At.IsZero() {
		sample.At = m.clock.Now()
	}

	m.mu.Lock()
	buf := m.active()
	buf.data = append(buf.data, sample)
	m.mu.Unlock()

	m.metrics.IncUsageEvents("enqueued")
	return nil
}

func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf1.data) + len(m.buf2.data) + len(m.unsent)
}

// Flush records every buffered sample. Samples that fail on an unavailable
// store go back into the active buffer for the next flush; events that fail
// to publish after their usage was recorded are retried on their own.
func (m *Monitor) Flush(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.switchBuffer()
	retired := m.inactive()
	batch := retired.data
	retired.data = make([]models.UsageSample, 0)
	unsent := m.unsent
	m.unsent = nil
	m.mu.Unlock()

	var (
		recorded int
		retry    []models.UsageSample
		errs     []error
	)
	for _, ev := range unsent {
		if err := m.publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sample := range batch {
		if err := m.record(ctx, sample); err != nil {
			errs = append(errs, err)
			if errors.Is(err, models.ErrStoreUnavailable) {
				retry = append(retry, sample)
			}
			continue
		}
		recorded++
	}

	if len(retry) > 0 {
		m.mu.Lock()
		buf := m.active()
		buf.data = append(retry, buf.data...)
		m.mu.Unlock()
		m.logger.Warnf(providers.TypeUsage, "%d samples kept for retry", len(retry))
	}
	return recorded, errors.Join(errs...)
}

func (m *Monitor) record(ctx context.Context, sample models.UsageSample) error {
	tokenHash, logicalID, err := m.resolve(ctx, sample)
	if err != nil {
		return err
	}

	hour := sample.At.In(m.clock.Location()).Hour()
	if _, err := m.usage.RecordUsage(ctx, logicalID, sample.Seconds, hour); err != nil {
		return err
	}
	m.remember(ctx, tokenHash, sample.Handle)

	app, known := m.catalog.App(tokenHash)
	if !known || !app.IsReward() || !m.unlocked(ctx, tokenHash) {
		return nil
	}
	// The usage is recorded; a failed publish waits in m.unsent.
	_ = m.publish(ctx, NewUsageEvent(tokenHash, logicalID, sample.Seconds, sample.At, SourceMonitor))
	return nil
}

// unlocked reports whether the foreground holds a reservation for
// tokenHash. An unreadable projection counts as unlocked: the foreground
// ignores events for apps without an entry.
func (m *Monitor) unlocked(ctx context.Context, tokenHash string) bool {
	_, err := m.unlocks.Projected(ctx, tokenHash)
	if err == nil {
		return true
	}
	if store.IsNotFound(err) {
		return false
	}
	m.logger.Warnf(providers.TypeUsage, "unlock projection for %s: %s", tokenHash, err)
	return true
}

func (m *Monitor) publish(ctx context.Context, ev models.UsageEvent) error {
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.Errorf(providers.TypeUsage, "publish usage event for %s: %s", ev.LogicalID, err)
		m.mu.Lock()
		m.unsent = append(m.unsent, ev)
		m.mu.Unlock()
		return err
	}
	return nil
}

// resolve returns the catalog token hash and logical ID sample counts for.
// A handle outside the catalog is matched through its reissue alias, then
// by display name, and finally through the persisted identity map.
func (m *Monitor) resolve(ctx context.Context, sample models.UsageSample) (string, string, error) {
	tokenHash := identity.Hash(sample.Handle)
	if app, ok := m.catalog.App(tokenHash); ok {
		return tokenHash, app.LogicalID, nil
	}
	if canonical := m.resolver.Canonical(ctx, tokenHash); canonical != tokenHash {
		if app, ok := m.catalog.App(canonical); ok {
			return canonical, app.LogicalID, nil
		}
	}

	if sample.DisplayName != "" {
		app, err := m.resolver.Reconcile(ctx, sample.Handle, sample.DisplayName, m.catalog.Apps())
		switch {
		case err == nil:
			return app.TokenHash, app.LogicalID, nil
		case errors.Is(err, models.ErrStoreUnavailable):
			return "", "", err
		case errors.Is(err, models.ErrIdentityConflict):
			m.logger.Warnf(providers.TypeUsage, "handle %s: %s", tokenHash, err)
		}
	}

	logicalID, err := m.resolver.LogicalID(ctx, tokenHash)
	return tokenHash, logicalID, err
}

// remember points the handle side table entry of tokenHash at handle, once
// per process per handle.
func (m *Monitor) remember(ctx context.Context, tokenHash string, handle models.AppHandle) {
	seenKey := identity.Hash(handle)
	m.seenMu.Lock()
	_, done := m.seen[seenKey]
	m.seenMu.Unlock()
	if done {
		return
	}
	if err := m.resolver.RememberHandle(ctx, tokenHash, handle); err != nil {
		m.logger.Warnf(providers.TypeUsage, "remember handle %s: %s", tokenHash, err)
		return
	}
	m.seenMu.Lock()
	m.seen[seenKey] = struct{}{}
	m.seenMu.Unlock()
}

// Sample polls sampler for each handle and enqueues the positive deltas,
// named when the sampler also resolves display names. It returns how many
// samples were enqueued.
func (m *Monitor) Sample(ctx context.Context, sampler UsageSampler, handles []models.AppHandle) int {
	namer, _ := sampler.(NameResolver)
	n := 0
	for _, handle := range handles {
		seconds, err := sampler.UsageDelta(ctx, handle)
		if err != nil {
			m.logger.Warnf(providers.TypeUsage, "sample %s: %s", identity.Hash(handle), err)
			continue
		}
		if seconds <= 0 {
			continue
		}
		sample := models.UsageSample{Handle: handle, Seconds: seconds, At: m.clock.Now()}
		if namer != nil {
			sample.DisplayName, _ = namer.DisplayName(ctx, handle)
		}
		if err := m.Enqueue(sample); err == nil {
			n++
		}
	}
	return n
}
