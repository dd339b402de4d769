package relay

import (
	"context"
	"encoding/base64"
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/identity"
	"strd/internal/ledger"
	"strd/internal/models"
	"strd/internal/store"
	"strd/internal/structures"
	"strd/internal/testutil"
	"strd/internal/usage"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	readerHandle = models.AppHandle("reader")
	gameHandle   = models.AppHandle("game")
	readerToken  = identity.Hash(readerHandle)
	gameToken    = identity.Hash(gameHandle)
)

type fixture struct {
	store     *testutil.FlakyStore
	eventDB   *testutil.FlakyStore
	codec     *store.Codec
	clock     *testutil.MockClock
	catalog   *catalog.Catalog
	resolver  *identity.Resolver
	usage     *usage.Aggregator
	book      *ledger.Book
	ledger    *ledger.Ledger
	engine    *blocking.Engine
	shields   *ShieldPublisher
	notifier  *store.LocalNotifier
	events    *EventLog
	monitor   *Monitor
	receiver  *Receiver
	refresher *Refresher
	cache     *testutil.MockCache
	logger    *testutil.MockLogger
	metrics   *testutil.MockMetrics
}

func testConfig() *structures.Config {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	return &structures.Config{
		Rewards: structures.RewardsConfig{MinUnlockMinutes: 15, MinChallengeUnlockMinutes: 1},
		Usage:   structures.UsageConfig{HistoryDays: 7},
		Sync: structures.SyncConfig{
			RefreshInterval:  time.Second,
			FlushInterval:    time.Second,
			DrainInterval:    time.Second,
			ForceResyncEvery: 2,
		},
		Apps: []structures.AppConfig{
			{Handle: enc("reader"), DisplayName: "Reader", Category: "learning", PointsPerMinute: 1, LogicalID: "reader"},
			{Handle: enc("game"), DisplayName: "Game", Category: "reward", PointsPerMinute: 10, LogicalID: "game"},
		},
		Goals: []structures.GoalConfig{
			{RewardAppID: "game", LearningAppID: "reader", TargetMinutes: 20},
		},
		Schedules: []structures.ScheduleConfig{
			{
				AppID: "game",
				DowntimeWindows: []structures.WindowConfig{
					{Weekday: "tuesday", StartHour: 21, EndHour: 7},
				},
			},
		},
	}
}

// newFixture wires both roles onto one store, the way two processes share it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := testConfig()
	cat, err := catalog.New(conf)
	require.NoError(t, err)

	f := &fixture{
		store:    testutil.NewFlakyStore(),
		eventDB:  testutil.NewFlakyStore(),
		codec:    store.NewCodec(nil, false),
		clock:    testutil.NewMockClock(time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)), // Tuesday
		catalog:  cat,
		notifier: store.NewLocalNotifier(),
		cache:    testutil.NewMockCache(),
		logger:   &testutil.MockLogger{},
		metrics:  testutil.NewMockMetrics(),
	}
	f.resolver = identity.NewResolver(f.store, f.codec, f.logger)
	f.usage = usage.NewAggregator(conf, f.store, f.codec, f.clock, cat, f.logger, f.metrics)
	f.book = ledger.NewBook(f.store, f.codec, f.clock, f.logger)
	goals := ledger.NewGoals(cat, f.usage)
	f.shields = NewShieldPublisher(f.store, f.codec, f.notifier, f.clock, f.logger)
	f.engine = blocking.NewEngine(f.clock, cat, f.usage, goals, f.book, f.resolver, f.shields, f.logger, f.metrics)
	f.ledger = ledger.NewLedger(conf, f.book, goals, cat, f.engine, f.clock, f.logger, f.metrics)
	f.events = NewEventLog(f.eventDB, f.codec, f.notifier, f.logger, f.metrics)
	f.monitor = NewMonitor(cat, f.resolver, f.usage, f.book, f.events, f.clock, f.logger, f.metrics)
	f.receiver = NewReceiver(f.events, f.notifier, f.ledger, f.engine, f.cache, f.logger)
	f.refresher = NewRefresher(conf, f.engine, cat, f.usage, f.cache, f.clock, f.logger)
	return f
}

// earn records enough reader time to satisfy the game goal.
func (f *fixture) earn(t *testing.T, minutes int) {
	t.Helper()
	_, err := f.usage.RecordUsage(context.Background(), "reader", minutes*60, f.clock.Now().Hour())
	require.NoError(t, err)
}

func (f *fixture) unlockGame(t *testing.T, minutes int) {
	t.Helper()
	res, err := f.ledger.Unlock(context.Background(), ledger.UnlockRequest{TokenHash: gameToken, Minutes: minutes})
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeUnlocked, res.Outcome)
}
