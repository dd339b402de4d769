package blocking

import (
	"context"
	"encoding/base64"
	"errors"
	"strd/internal/catalog"
	"strd/internal/identity"
	"strd/internal/ledger"
	"strd/internal/models"
	"strd/internal/store"
	"strd/internal/structures"
	"strd/internal/testutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsage struct {
	mu      sync.Mutex
	seconds map[string]int
}

func (u *fakeUsage) TodaySeconds(_ context.Context, id string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.seconds[id]
}

func (u *fakeUsage) TodayMinutes(ctx context.Context, id string) int {
	return u.TodaySeconds(ctx, id) / 60
}

func (u *fakeUsage) set(id string, seconds int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seconds[id] = seconds
}

var (
	gameToken  = identity.Hash(models.AppHandle("game"))
	videoToken = identity.Hash(models.AppHandle("video"))
	musicToken = identity.Hash(models.AppHandle("music"))
)

type fixture struct {
	engine  *Engine
	ledger  *ledger.Ledger
	usage   *fakeUsage
	clock   *testutil.MockClock
	blocker *testutil.MockBlocker
	metrics *testutil.MockMetrics
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	conf := &structures.Config{
		Rewards: structures.RewardsConfig{MinUnlockMinutes: 15, MinChallengeUnlockMinutes: 1},
		Apps: []structures.AppConfig{
			{Handle: enc("reader"), DisplayName: "Reader", Category: "learning", PointsPerMinute: 1, LogicalID: "reader"},
			{Handle: enc("game"), DisplayName: "Game", Category: "reward", PointsPerMinute: 10, LogicalID: "game"},
			{Handle: enc("video"), DisplayName: "Video", Category: "reward", PointsPerMinute: 5, LogicalID: "video"},
			{Handle: enc("music"), DisplayName: "Music", Category: "reward", PointsPerMinute: 5, LogicalID: "music"},
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
			{AppID: "video", DailyLimitMinutes: intPtr(30)},
		},
	}
	cat, err := catalog.New(conf)
	require.NoError(t, err)

	f := &fixture{
		usage:   &fakeUsage{seconds: make(map[string]int)},
		clock:   testutil.NewMockClock(time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)), // Tuesday
		blocker: &testutil.MockBlocker{},
		metrics: testutil.NewMockMetrics(),
	}
	logger := &testutil.MockLogger{}
	s := store.NewMemoryStore()
	codec := store.NewCodec(nil, false)
	book := ledger.NewBook(s, codec, f.clock, logger)
	goals := ledger.NewGoals(cat, f.usage)
	resolver := identity.NewResolver(s, codec, logger)

	f.engine = NewEngine(f.clock, cat, f.usage, goals, book, resolver, f.blocker, logger, f.metrics)
	f.ledger = ledger.NewLedger(conf, book, goals, cat, f.engine, f.clock, logger, f.metrics)
	return f
}

func TestEvaluate_NoRestrictions(t *testing.T) {
	f := newFixture(t)
	d := f.engine.Evaluate(context.Background(), musicToken)

	assert.False(t, d.ShouldBlock)
	assert.Equal(t, models.ReasonNone, d.PrimaryReason)
	assert.Empty(t, d.AllActiveReasons)
	assert.Equal(t, "music", d.LogicalID)
}

func TestEvaluate_UnknownTokenFailsOpen(t *testing.T) {
	f := newFixture(t)
	d := f.engine.Evaluate(context.Background(), "unknown")
	assert.False(t, d.ShouldBlock)
}

func TestEvaluate_DowntimeBeatsLearningGoal(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC))

	d := f.engine.Evaluate(context.Background(), gameToken)
	assert.True(t, d.ShouldBlock)
	assert.Equal(t, models.ReasonDowntime, d.PrimaryReason)
	assert.Equal(t, []models.BlockingReason{models.ReasonDowntime, models.ReasonLearningGoal}, d.AllActiveReasons)
	require.NotNil(t, d.Window)
	assert.Equal(t, 21, d.Window.StartHour)
	assert.Equal(t, 20, d.TargetMinutes)
}

func TestEvaluate_DowntimeSpillsPastMidnight(t *testing.T) {
	f := newFixture(t)
	f.usage.set("reader", 20*60)
	f.clock.Set(time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC))

	d := f.engine.Evaluate(context.Background(), gameToken)
	assert.Equal(t, models.ReasonDowntime, d.PrimaryReason)

	f.clock.Set(time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC))
	d = f.engine.Evaluate(context.Background(), gameToken)
	assert.False(t, d.ShouldBlock)
}

func TestEvaluate_LearningGoalUntilMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.usage.set("reader", 19*60)
	d := f.engine.Evaluate(ctx, gameToken)
	assert.Equal(t, models.ReasonLearningGoal, d.PrimaryReason)
	assert.Equal(t, 19, d.CurrentMinutes)

	f.usage.set("reader", 20*60)
	d = f.engine.Evaluate(ctx, gameToken)
	assert.False(t, d.ShouldBlock)
}

func TestEvaluate_UnlockSuppressesLearningGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Unlock(ctx, ledger.UnlockRequest{TokenHash: gameToken, Minutes: 15, BypassValidation: true})
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeUnlocked, res.Outcome)

	d := f.engine.Evaluate(ctx, gameToken)
	assert.False(t, d.ShouldBlock)
}

func TestEvaluate_DailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.usage.set("video", 29*60+59)
	d := f.engine.Evaluate(ctx, videoToken)
	assert.False(t, d.ShouldBlock)
	assert.Equal(t, 30, d.LimitMinutes)

	f.usage.set("video", 30*60)
	d = f.engine.Evaluate(ctx, videoToken)
	assert.Equal(t, models.ReasonDailyLimitReached, d.PrimaryReason)
	assert.Equal(t, 30, d.UsedMinutes)

	reason, hard := f.engine.HardRestriction(ctx, videoToken)
	assert.True(t, hard)
	assert.Equal(t, models.ReasonDailyLimitReached, reason)

	res, err := f.ledger.Unlock(ctx, ledger.UnlockRequest{TokenHash: videoToken, Minutes: 15, BypassValidation: true})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeBlocked, res.Outcome)
}

func TestHardRestriction_IgnoresLearningGoal(t *testing.T) {
	f := newFixture(t)
	_, hard := f.engine.HardRestriction(context.Background(), gameToken)
	assert.False(t, hard)
}

func TestEvaluate_RewardTimeExpiredAfterConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.usage.set("reader", 20*60)

	_, err := f.ledger.Unlock(ctx, ledger.UnlockRequest{TokenHash: gameToken, Minutes: 15})
	require.NoError(t, err)
	_, err = f.ledger.Consume(ctx, gameToken, 300)
	require.NoError(t, err)
	out, err := f.ledger.Consume(ctx, gameToken, 600)
	require.NoError(t, err)
	require.True(t, out.Expired)

	d := f.engine.Evaluate(ctx, gameToken)
	assert.True(t, d.ShouldBlock)
	assert.Equal(t, models.ReasonRewardTimeExpired, d.PrimaryReason)

	calls := f.blocker.Snapshot()
	require.Len(t, calls, 2)
	assert.False(t, calls[0].Blocked)
	assert.True(t, calls[1].Blocked)
	assert.Equal(t, models.ReasonRewardTimeExpired, calls[1].Reason)

	f.clock.Set(time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC))
	d = f.engine.Evaluate(ctx, gameToken)
	assert.False(t, d.Has(models.ReasonRewardTimeExpired), "expiry only holds for the day it happened")
}

func TestSyncAll_IssuesOnlyChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := []string{gameToken, videoToken, musicToken}

	report, err := f.engine.SyncAll(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 1, report.Blocked)
	assert.Equal(t, 2, report.Unblocked)
	assert.True(t, report.Changed())
	assert.Len(t, f.blocker.Snapshot(), 3)

	report, err = f.engine.SyncAll(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
	assert.False(t, report.Changed())
	assert.Len(t, f.blocker.Snapshot(), 3)

	f.usage.set("reader", 20*60)
	report, err = f.engine.SyncAll(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unblocked)
	assert.Equal(t, 2, report.Unchanged)

	f.engine.Reset()
	report, err = f.engine.SyncAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unblocked)
	assert.Equal(t, 1, f.metrics.BlockCommands["block"])
	assert.Equal(t, 6, f.metrics.BlockCommands["unblock"])
}

func TestSyncAll_SkipsTokensWithoutHandle(t *testing.T) {
	f := newFixture(t)
	report, err := f.engine.SyncAll(context.Background(), []string{"unknown", musicToken})
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown"}, report.Skipped)
	assert.Equal(t, 1, report.Unblocked)
}

func TestSyncAll_FailedCommandRetriedNextSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.blocker.Err = errors.New("shield unavailable")
	report, err := f.engine.SyncAll(ctx, []string{musicToken})
	assert.Error(t, err)
	assert.Equal(t, []string{musicToken}, report.Failed)

	f.blocker.Err = nil
	report, err = f.engine.SyncAll(ctx, []string{musicToken})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unblocked)
}

func TestApply_AlwaysIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, gameToken)
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, gameToken)
	require.NoError(t, err)

	calls := f.blocker.Snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, models.AppHandle("game"), calls[0].Handle)
	assert.Equal(t, models.ReasonLearningGoal, calls[0].Reason)

	_, err = f.engine.Apply(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNoHandle)
}
