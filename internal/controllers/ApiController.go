package controllers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strd/internal/blocking"
	"strd/internal/catalog"
	"strd/internal/ledger"
	"strd/internal/models"
	"strd/internal/providers"
	"strings"

	json "github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type GoalReader interface {
	Status(ctx context.Context, rewardAppID string) models.GoalStatus
}

type UsageRecords interface {
	Record(ctx context.Context, logicalID string) models.DailyUsageRecord
}

type ShieldReader interface {
	Commands(ctx context.Context) ([]models.ShieldCommand, error)
}

// ApiController serves the view layer of the foreground process.
type ApiController struct {
	logger  providers.Logger
	cache   providers.CacheProviderInterface
	ledger  ledger.LedgerInterface
	goals   GoalReader
	engine  blocking.EngineInterface
	usage   UsageRecords
	shields ShieldReader
	catalog *catalog.Catalog
}

func NewApiController(logger providers.Logger, cache providers.CacheProviderInterface, l ledger.LedgerInterface, goals GoalReader, engine blocking.EngineInterface, usage UsageRecords, shields ShieldReader, cat *catalog.Catalog) *ApiController {
	return &ApiController{
		logger:  logger,
		cache:   cache,
		ledger:  l,
		goals:   goals,
		engine:  engine,
		usage:   usage,
		shields: shields,
		catalog: cat,
	}
}

type pointsResponse struct {
	Available     int `json:"available"`
	Reserved      int `json:"reserved"`
	Consumed      int `json:"consumed"`
	ConsumedToday int `json:"consumed_today"`
}

type earnedResponse struct {
	RewardAppID   string            `json:"reward_app_id"`
	EarnedMinutes int               `json:"earned_minutes"`
	Goal          models.GoalStatus `json:"goal"`
}

type canUnlockResponse struct {
	Allowed bool                  `json:"allowed"`
	Reason  models.BlockingReason `json:"reason"`
}

type lockRequest struct {
	TokenHash string `json:"tokenHash"`
}

type lockResponse struct {
	Locked bool `json:"locked"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.storeError(w, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownApp), errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, models.ErrNotRewardApp):
		http.Error(w, "Unprocessable Entity", http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrStoreUnavailable):
		ac.logger.Errorf(providers.TypeApp, "store unavailable: %s", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		ac.logger.Errorf(providers.TypeApp, "request failed: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return "", false
	}
	return v, true
}

func (ac *ApiController) GetPoints(w http.ResponseWriter, r *http.Request) {
	var rewards []string
	if vals, ok := r.URL.Query()["reward"]; ok {
		rewards = append([]string{}, vals...)
		sort.Strings(rewards)
	}
	ac.serveFromCacheOrCompute(w, "points:"+strings.Join(rewards, ","), func() (any, error) {
		ctx := r.Context()
		return pointsResponse{
			Available:     ac.ledger.AvailablePoints(ctx, rewards),
			Reserved:      ac.ledger.ReservedPoints(ctx),
			Consumed:      ac.ledger.ConsumedPoints(ctx),
			ConsumedToday: ac.ledger.ConsumedToday(ctx),
		}, nil
	})
}

func (ac *ApiController) GetEarned(w http.ResponseWriter, r *http.Request) {
	app, ok := requiredParam(w, r, "app")
	if !ok {
		return
	}
	ac.serveFromCacheOrCompute(w, "earned:"+app, func() (any, error) {
		status := ac.goals.Status(r.Context(), app)
		return earnedResponse{
			RewardAppID:   app,
			EarnedMinutes: status.EarnedMinutes,
			Goal:          status,
		}, nil
	})
}

func (ac *ApiController) GetDecision(w http.ResponseWriter, r *http.Request) {
	token, ok := requiredParam(w, r, "token")
	if !ok {
		return
	}
	ac.serveFromCacheOrCompute(w, "decision:"+token, func() (any, error) {
		return ac.engine.Evaluate(r.Context(), token), nil
	})
}

func (ac *ApiController) CanUnlock(w http.ResponseWriter, r *http.Request) {
	token, ok := requiredParam(w, r, "token")
	if !ok {
		return
	}
	ac.serveFromCacheOrCompute(w, "can:"+token, func() (any, error) {
		allowed, reason := ac.ledger.CanUnlock(r.Context(), token)
		return canUnlockResponse{Allowed: allowed, Reason: reason}, nil
	})
}

func unlockStatus(o ledger.Outcome) int {
	switch o {
	case ledger.OutcomeAlreadyUnlocked:
		return http.StatusConflict
	case ledger.OutcomeInsufficientPoints:
		return http.StatusPaymentRequired
	case ledger.OutcomeBlocked:
		return http.StatusLocked
	}
	return http.StatusOK
}

func (ac *ApiController) Unlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ledger.UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenHash == "" || req.Minutes < 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	res, err := ac.ledger.Unlock(r.Context(), req)
	if err != nil {
		ac.storeError(w, err)
		return
	}
	if res.Outcome == ledger.OutcomeUnlocked || res.Outcome == ledger.OutcomeExtended {
		ac.cache.Clear()
	}
	writeJSON(w, unlockStatus(res.Outcome), res)
}

func (ac *ApiController) Lock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenHash == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	locked, err := ac.ledger.Lock(r.Context(), req.TokenHash)
	if err != nil {
		ac.storeError(w, err)
		return
	}
	if locked {
		ac.cache.Clear()
	}
	writeJSON(w, http.StatusOK, lockResponse{Locked: locked})
}

// Sync re-evaluates every reward app. With force=1 every command is
// reissued, not only the changed ones.
func (ac *ApiController) Sync(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("force") == "1" {
		ac.engine.Reset()
	}
	report, err := ac.engine.SyncAll(r.Context(), nil)
	if err != nil {
		ac.logger.Warnf(providers.TypeSync, "manual sync: %s", err)
	}
	if report.Changed() {
		ac.cache.Clear()
	}
	writeJSON(w, http.StatusOK, report)
}

func (ac *ApiController) GetApps(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "apps", func() (any, error) {
		return ac.catalog.Apps(), nil
	})
}

func (ac *ApiController) GetUsage(w http.ResponseWriter, r *http.Request) {
	app, ok := requiredParam(w, r, "app")
	if !ok {
		return
	}
	ac.serveFromCacheOrCompute(w, "usage:"+app, func() (any, error) {
		return ac.usage.Record(r.Context(), app), nil
	})
}

func (ac *ApiController) GetShields(w http.ResponseWriter, r *http.Request) {
	cmds, err := ac.shields.Commands(r.Context())
	if err != nil {
		ac.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}
