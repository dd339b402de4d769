package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/ledger"
	"strd/internal/models"
	"strd/internal/structures"
	"strd/internal/testutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- local fakes (scoped to controller tests) ---

type fakeLedger struct {
	available  int
	reserved   int
	consumed   int
	today      int
	gotRewards []string
	allowed    bool
	reason     models.BlockingReason
	unlockRes  ledger.UnlockResult
	unlockErr  error
	unlockReqs []ledger.UnlockRequest
	locked     bool
	lockErr    error
	calls      int
}

func (f *fakeLedger) EarnedMinutes(_ context.Context, _ string) int { return 0 }
func (f *fakeLedger) AvailablePoints(_ context.Context, rewards []string) int {
	f.calls++
	f.gotRewards = rewards
	return f.available
}
func (f *fakeLedger) ReservedPoints(_ context.Context) int { return f.reserved }
func (f *fakeLedger) ConsumedPoints(_ context.Context) int { return f.consumed }
func (f *fakeLedger) ConsumedToday(_ context.Context) int  { return f.today }
func (f *fakeLedger) CanUnlock(_ context.Context, _ string) (bool, models.BlockingReason) {
	return f.allowed, f.reason
}
func (f *fakeLedger) Unlock(_ context.Context, req ledger.UnlockRequest) (ledger.UnlockResult, error) {
	f.unlockReqs = append(f.unlockReqs, req)
	return f.unlockRes, f.unlockErr
}
func (f *fakeLedger) Consume(_ context.Context, _ string, _ int) (ledger.ConsumeOutcome, error) {
	return ledger.ConsumeOutcome{}, nil
}
func (f *fakeLedger) Lock(_ context.Context, _ string) (bool, error) { return f.locked, f.lockErr }

type fakeEngine struct {
	decision models.Decision
	report   blocking.SyncReport
	syncErr  error
	resets   int
	syncs    int
}

func (f *fakeEngine) Evaluate(_ context.Context, token string) models.Decision {
	d := f.decision
	d.TokenHash = token
	return d
}
func (f *fakeEngine) HardRestriction(_ context.Context, _ string) (models.BlockingReason, bool) {
	return models.ReasonNone, false
}
func (f *fakeEngine) Apply(_ context.Context, token string) (models.Decision, error) {
	return f.Evaluate(context.Background(), token), nil
}
func (f *fakeEngine) SyncAll(_ context.Context, _ []string) (blocking.SyncReport, error) {
	f.syncs++
	return f.report, f.syncErr
}
func (f *fakeEngine) Reset() { f.resets++ }

type fakeGoals struct{ status models.GoalStatus }

func (f *fakeGoals) Status(_ context.Context, id string) models.GoalStatus {
	s := f.status
	s.RewardAppID = id
	return s
}

type fakeUsage struct{}

func (f *fakeUsage) Record(_ context.Context, id string) models.DailyUsageRecord {
	return models.DailyUsageRecord{LogicalID: id, TodaySeconds: 90}
}

type fakeShields struct {
	cmds []models.ShieldCommand
	err  error
}

func (f *fakeShields) Commands(_ context.Context) ([]models.ShieldCommand, error) {
	return f.cmds, f.err
}

// --- helpers ---

type harness struct {
	ac      *ApiController
	ledger  *fakeLedger
	engine  *fakeEngine
	goals   *fakeGoals
	shields *fakeShields
	cache   *testutil.MockCache
	logger  *testutil.MockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	cat, err := catalog.New(&structures.Config{
		Apps: []structures.AppConfig{
			{Handle: enc("reader"), DisplayName: "Reader", Category: "learning", PointsPerMinute: 1, LogicalID: "reader"},
			{Handle: enc("game"), DisplayName: "Game", Category: "reward", PointsPerMinute: 10, LogicalID: "game"},
		},
	})
	require.NoError(t, err)

	h := &harness{
		ledger:  &fakeLedger{allowed: true, reason: models.ReasonNone},
		engine:  &fakeEngine{},
		goals:   &fakeGoals{},
		shields: &fakeShields{},
		cache:   testutil.NewMockCache(),
		logger:  &testutil.MockLogger{},
	}
	h.ac = NewApiController(h.logger, h.cache, h.ledger, h.goals, h.engine, &fakeUsage{}, h.shields, cat)
	return h
}

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func post(handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// --- points ---

func TestGetPoints_ReturnsTotals(t *testing.T) {
	h := newHarness(t)
	h.ledger.available, h.ledger.reserved, h.ledger.consumed, h.ledger.today = 50, 150, 40, 20

	rr := get(h.ac.GetPoints, "/points")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, map[string]int{"available": 50, "reserved": 150, "consumed": 40, "consumed_today": 20}, resp)
	assert.Nil(t, h.ledger.gotRewards, "no filter means every reward app")
}

func TestGetPoints_RewardFilter(t *testing.T) {
	h := newHarness(t)
	rr := get(h.ac.GetPoints, "/points?reward=b&reward=a")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"a", "b"}, h.ledger.gotRewards)
	assert.Contains(t, h.cache.Data, "points:a,b")
}

func TestGetPoints_CacheHitSkipsLedger(t *testing.T) {
	h := newHarness(t)
	h.cache.Set("points:", []byte(`{"available":7}`))

	rr := get(h.ac.GetPoints, "/points")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"available":7}`, rr.Body.String())
	assert.Zero(t, h.ledger.calls)
}

// --- earned / decision / can-unlock ---

func TestGetEarned(t *testing.T) {
	h := newHarness(t)
	h.goals.status = models.GoalStatus{Satisfied: true, EarnedMinutes: 20, Linked: 1, Met: 1}

	rr := get(h.ac.GetEarned, "/earned?app=game")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp earnedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "game", resp.RewardAppID)
	assert.Equal(t, 20, resp.EarnedMinutes)
	assert.True(t, resp.Goal.Satisfied)
}

func TestRequiredParams(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
	}{
		{"earned", h.ac.GetEarned, "/earned"},
		{"decision", h.ac.GetDecision, "/decision?token="},
		{"can-unlock", h.ac.CanUnlock, "/can-unlock"},
		{"usage", h.ac.GetUsage, "/usage/today"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(tt.handler, tt.target).Code)
		})
	}
}

func TestGetDecision(t *testing.T) {
	h := newHarness(t)
	h.engine.decision = models.Decision{
		ShouldBlock:      true,
		PrimaryReason:    models.ReasonDowntime,
		AllActiveReasons: []models.BlockingReason{models.ReasonDowntime},
	}

	rr := get(h.ac.GetDecision, "/decision?token=abc")
	require.Equal(t, http.StatusOK, rr.Code)

	var d models.Decision
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, "abc", d.TokenHash)
	assert.True(t, d.ShouldBlock)
	assert.Equal(t, models.ReasonDowntime, d.PrimaryReason)
	assert.Contains(t, h.cache.Data, "decision:abc")
}

func TestCanUnlock(t *testing.T) {
	h := newHarness(t)
	h.ledger.allowed, h.ledger.reason = false, models.ReasonDailyLimitReached

	rr := get(h.ac.CanUnlock, "/can-unlock?token=abc")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"allowed":false,"reason":"dailyLimitReached"}`, rr.Body.String())
}

// --- unlock ---

func TestUnlock_StatusByOutcome(t *testing.T) {
	tests := []struct {
		outcome ledger.Outcome
		status  int
		clears  int
	}{
		{ledger.OutcomeUnlocked, http.StatusOK, 1},
		{ledger.OutcomeExtended, http.StatusOK, 1},
		{ledger.OutcomeAlreadyUnlocked, http.StatusConflict, 0},
		{ledger.OutcomeInsufficientPoints, http.StatusPaymentRequired, 0},
		{ledger.OutcomeBlocked, http.StatusLocked, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			h := newHarness(t)
			h.ledger.unlockRes = ledger.UnlockResult{Outcome: tt.outcome}

			rr := post(h.ac.Unlock, "/unlock", `{"tokenHash":"abc","minutes":15}`)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.clears, h.cache.Clears)

			var res ledger.UnlockResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.Equal(t, tt.outcome, res.Outcome)
		})
	}
}

func TestUnlock_PassesRequest(t *testing.T) {
	h := newHarness(t)
	h.ledger.unlockRes = ledger.UnlockResult{Outcome: ledger.OutcomeUnlocked}

	post(h.ac.Unlock, "/unlock", `{"tokenHash":"abc","minutes":5,"isChallenge":true,"rewardTokens":["x"]}`)
	require.Len(t, h.ledger.unlockReqs, 1)
	req := h.ledger.unlockReqs[0]
	assert.Equal(t, "abc", req.TokenHash)
	assert.Equal(t, 5, req.Minutes)
	assert.True(t, req.IsChallenge)
	assert.Equal(t, []string{"x"}, req.RewardTokens)
}

func TestUnlock_BadRequests(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{`not json`, `{}`, `{"tokenHash":"abc","minutes":-1}`, ``} {
		rr := post(h.ac.Unlock, "/unlock", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Empty(t, h.ledger.unlockReqs)
}

func TestUnlock_OversizedBody(t *testing.T) {
	h := newHarness(t)
	big := `{"tokenHash":"` + strings.Repeat("a", maxRequestBodySize+1) + `"}`
	rr := post(h.ac.Unlock, "/unlock", big)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnlock_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"store", fmt.Errorf("unlock: %w", models.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("unlock: %w", models.ErrUnknownApp), http.StatusNotFound},
		{"not reward", fmt.Errorf("unlock: %w", models.ErrNotRewardApp), http.StatusUnprocessableEntity},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ledger.unlockErr = tt.err
			rr := post(h.ac.Unlock, "/unlock", `{"tokenHash":"abc","minutes":15}`)
			assert.Equal(t, tt.status, rr.Code)
			assert.Zero(t, h.cache.Clears)
		})
	}
}

// --- lock / sync ---

func TestLock(t *testing.T) {
	h := newHarness(t)
	h.ledger.locked = true

	rr := post(h.ac.Lock, "/lock", `{"tokenHash":"abc"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"locked":true}`, rr.Body.String())
	assert.Equal(t, 1, h.cache.Clears)
}

func TestLock_NothingToLock(t *testing.T) {
	h := newHarness(t)
	rr := post(h.ac.Lock, "/lock", `{"tokenHash":"abc"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"locked":false}`, rr.Body.String())
	assert.Zero(t, h.cache.Clears)
}

func TestLock_Errors(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusBadRequest, post(h.ac.Lock, "/lock", `{}`).Code)

	h.ledger.lockErr = fmt.Errorf("lock: %w", models.ErrStoreUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, post(h.ac.Lock, "/lock", `{"tokenHash":"abc"}`).Code)
}

func TestSync(t *testing.T) {
	h := newHarness(t)
	h.engine.report = blocking.SyncReport{Evaluated: 2, Blocked: 1, Unchanged: 1}

	rr := post(h.ac.Sync, "/sync", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var report blocking.SyncReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Blocked)
	assert.Equal(t, 1, h.cache.Clears)
	assert.Zero(t, h.engine.resets)
}

func TestSync_Force(t *testing.T) {
	h := newHarness(t)
	post(h.ac.Sync, "/sync?force=1", "")
	assert.Equal(t, 1, h.engine.resets)
	assert.Equal(t, 1, h.engine.syncs)
	assert.Zero(t, h.cache.Clears)
}

func TestSync_FailuresReported(t *testing.T) {
	h := newHarness(t)
	h.engine.report = blocking.SyncReport{Evaluated: 1, Failed: []string{"abc"}}
	h.engine.syncErr = fmt.Errorf("command for abc: boom")

	rr := post(h.ac.Sync, "/sync", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"failed":["abc"]`)
	assert.Equal(t, 1, h.logger.Count("warn"))
}

// --- apps / usage / shields ---

func TestGetApps(t *testing.T) {
	h := newHarness(t)
	rr := get(h.ac.GetApps, "/apps")
	require.Equal(t, http.StatusOK, rr.Code)

	var apps []models.AppIdentity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apps))
	require.Len(t, apps, 2)
	ids := []string{apps[0].LogicalID, apps[1].LogicalID}
	assert.ElementsMatch(t, []string{"reader", "game"}, ids)
}

func TestGetUsage(t *testing.T) {
	h := newHarness(t)
	rr := get(h.ac.GetUsage, "/usage/today?app=reader")
	require.Equal(t, http.StatusOK, rr.Code)

	var rec models.DailyUsageRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "reader", rec.LogicalID)
	assert.Equal(t, 90, rec.TodaySeconds)
}

func TestGetShields(t *testing.T) {
	h := newHarness(t)
	h.shields.cmds = []models.ShieldCommand{{TokenHash: "abc", Blocked: true, Reason: models.ReasonDowntime}}

	rr := get(h.ac.GetShields, "/shields")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"token_hash":"abc"`)

	h.shields.err = fmt.Errorf("list: %w", models.ErrStoreUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, get(h.ac.GetShields, "/shields").Code)
}
