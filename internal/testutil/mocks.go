package testutil

import (
	"context"
	"errors"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many records were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu             sync.Mutex
	Unlocks        map[string]int
	PointsConsumed int
	BlockCommands  map[string]int
	UsageEvents    map[string]int
	UsageSeconds   map[string]int
	StoreErrors    map[string]int
	SyncRuns       int
	CacheHits      int
	CacheMisses    int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Unlocks:       make(map[string]int),
		BlockCommands: make(map[string]int),
		UsageEvents:   make(map[string]int),
		UsageSeconds:  make(map[string]int),
		StoreErrors:   make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncUnlocks(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unlocks[outcome]++
}

func (m *MockMetrics) AddPointsConsumed(points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PointsConsumed += points
}

func (m *MockMetrics) IncBlockCommands(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BlockCommands[action]++
}

func (m *MockMetrics) ObserveSyncDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncRuns++
}

func (m *MockMetrics) IncUsageEvents(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UsageEvents[stage]++
}

func (m *MockMetrics) AddUsageSeconds(category string, seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UsageSeconds[category] += seconds
}

func (m *MockMetrics) IncStoreErrors(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoreErrors[op]++
}

// MockClock is a settable providers.Clock in a fixed zone.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now, loc: now.Location()}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.In(c.loc)
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MockClock) StartOfDay(t time.Time) time.Time {
	return providers.StartOfDay(t, c.loc)
}

func (c *MockClock) Location() *time.Location {
	return c.loc
}

var ErrInjected = errors.New("injected store failure")

// FlakyStore is a memory store that fails every call while Fail(true) is set.
type FlakyStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	failing bool
}

func NewFlakyStore() *FlakyStore {
	return &FlakyStore{MemoryStore: store.NewMemoryStore()}
}

func (f *FlakyStore) Fail(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = on
}

func (f *FlakyStore) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.Join(models.ErrStoreUnavailable, errors.New(op), ErrInjected)
	}
	return nil
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.check("get"); err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, value []byte) error {
	if err := f.check("set"); err != nil {
		return err
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *FlakyStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := f.check("delete"); err != nil {
		return false, err
	}
	return f.MemoryStore.Delete(ctx, key)
}

func (f *FlakyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := f.check("list"); err != nil {
		return nil, err
	}
	return f.MemoryStore.List(ctx, prefix)
}

// BlockCall is one command received by MockBlocker.
type BlockCall struct {
	Handle  models.AppHandle
	Blocked bool
	Reason  models.BlockingReason
}

// MockBlocker records block and unblock commands.
type MockBlocker struct {
	mu    sync.Mutex
	Calls []BlockCall
	Err   error
}

func (b *MockBlocker) ApplyBlock(_ context.Context, handle models.AppHandle, reason models.BlockingReason) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Calls = append(b.Calls, BlockCall{Handle: handle, Blocked: true, Reason: reason})
	return nil
}

func (b *MockBlocker) RemoveBlock(_ context.Context, handle models.AppHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Calls = append(b.Calls, BlockCall{Handle: handle, Blocked: false, Reason: models.ReasonNone})
	return nil
}

func (b *MockBlocker) Snapshot() []BlockCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BlockCall(nil), b.Calls...)
}

func (b *MockBlocker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = nil
}

// MockCache is an in-memory providers.CacheProviderInterface.
type MockCache struct {
	mu     sync.Mutex
	Data   map[string][]byte
	Clears int
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (c *MockCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Data[key]
	return v, ok
}

func (c *MockCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Data[key] = value
}

func (c *MockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Data = make(map[string][]byte)
	c.Clears++
}
