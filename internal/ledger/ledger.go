// Package ledger keeps the reward points balance: earned from learning goals,
// reserved by unlocks and consumed by reward app usage.
package ledger

import (
	"context"
	"fmt"
	"strd/internal/catalog"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/structures"
	"sync"
)

type Outcome string

const (
	OutcomeUnlocked           Outcome = "unlocked"
	OutcomeExtended           Outcome = "extended"
	OutcomeInsufficientPoints Outcome = "insufficientPoints"
	OutcomeAlreadyUnlocked    Outcome = "alreadyUnlocked"
	OutcomeBlocked            Outcome = "blocked"
)

type UnlockRequest struct {
	TokenHash        string   `json:"tokenHash"`
	Minutes          int      `json:"minutes"`
	PointsPerMinute  int      `json:"pointsPerMinute,omitempty"`
	BypassValidation bool     `json:"bypassValidation,omitempty"`
	IsChallenge      bool     `json:"isChallenge,omitempty"`
	Extend           bool     `json:"extend,omitempty"`
	RewardTokens     []string `json:"rewardTokens,omitempty"`
}

type UnlockResult struct {
	Outcome      Outcome                   `json:"outcome"`
	Reason       models.BlockingReason     `json:"reason,omitempty"`
	PointsNeeded int                       `json:"pointsNeeded"`
	Available    int                       `json:"available"`
	Entry        *models.UnlockedRewardApp `json:"entry,omitempty"`
}

type ConsumeOutcome struct {
	RemainingReserved int  `json:"remainingReserved"`
	Expired           bool `json:"expired"`
	Consumed          int  `json:"consumed"`
	Found             bool `json:"found"`
}

// Gate is the blocking engine as seen from the ledger.
type Gate interface {
	HardRestriction(ctx context.Context, tokenHash string) (models.BlockingReason, bool)
	Apply(ctx context.Context, tokenHash string) (models.Decision, error)
}

type LedgerInterface interface {
	EarnedMinutes(ctx context.Context, rewardAppID string) int
	AvailablePoints(ctx context.Context, rewardTokens []string) int
	ReservedPoints(ctx context.Context) int
	ConsumedPoints(ctx context.Context) int
	ConsumedToday(ctx context.Context) int
	CanUnlock(ctx context.Context, tokenHash string) (bool, models.BlockingReason)
	Unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error)
	Consume(ctx context.Context, tokenHash string, usageSeconds int) (ConsumeOutcome, error)
	Lock(ctx context.Context, tokenHash string) (bool, error)
}

type Ledger struct {
	book         *Book
	goals        *Goals
	catalog      *catalog.Catalog
	gate         Gate
	clock        providers.Clock
	logger       providers.Logger
	metrics      providers.MetricsProviderInterface
	minUnlock    int
	minChallenge int

	mu sync.Mutex
}

func NewLedger(conf *structures.Config, book *Book, goals *Goals, cat *catalog.Catalog, gate Gate, clock providers.Clock, logger providers.Logger, metrics providers.MetricsProviderInterface) *Ledger {
	return &Ledger{
		book:         book,
		goals:        goals,
		catalog:      cat,
		gate:         gate,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		minUnlock:    conf.Rewards.MinUnlockMinutes,
		minChallenge: conf.Rewards.MinChallengeUnlockMinutes,
	}
}

func (l *Ledger) EarnedMinutes(ctx context.Context, rewardAppID string) int {
	return l.goals.EarnedMinutes(ctx, rewardAppID)
}

// totalEarned sums earned minutes times rate over the given reward apps.
// Nil means every configured reward app.
func (l *Ledger) totalEarned(ctx context.Context, rewardTokens []string) int {
	if rewardTokens == nil {
		rewardTokens = l.catalog.RewardTokens()
	}
	seen := make(map[string]struct{}, len(rewardTokens))
	total := 0
	for _, token := range rewardTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		app, ok := l.catalog.App(token)
		if !ok || !app.IsReward() {
			continue
		}
		total += l.goals.EarnedMinutes(ctx, app.LogicalID) * app.PointsPerMinute
	}
	return total
}

func (l *Ledger) available(ctx context.Context, state *models.LedgerState, rewardTokens []string) int {
	today := l.clock.StartOfDay(l.clock.Now())
	return max(0, l.totalEarned(ctx, rewardTokens)-state.TotalReserved()-state.ConsumedOn(today))
}

func (l *Ledger) AvailablePoints(ctx context.Context, rewardTokens []string) int {
	return l.available(ctx, l.book.State(ctx), rewardTokens)
}

func (l *Ledger) ReservedPoints(ctx context.Context) int {
	return l.book.State(ctx).TotalReserved()
}

func (l *Ledger) ConsumedPoints(ctx context.Context) int {
	return l.book.State(ctx).TotalConsumedPoints
}

// ConsumedToday is the part of the consumed total charged against today.
func (l *Ledger) ConsumedToday(ctx context.Context) int {
	return l.book.State(ctx).ConsumedOn(l.clock.StartOfDay(l.clock.Now()))
}

// CanUnlock refuses only hard restrictions. An unmet goal is not one:
// redemption is how earned time gets spent.
func (l *Ledger) CanUnlock(ctx context.Context, tokenHash string) (bool, models.BlockingReason) {
	if l.gate == nil {
		return true, models.ReasonNone
	}
	if reason, hard := l.gate.HardRestriction(ctx, tokenHash); hard {
		return false, reason
	}
	return true, models.ReasonNone
}

func (l *Ledger) minimum(challenge bool) int {
	if challenge {
		return l.minChallenge
	}
	return l.minUnlock
}

// Unlock reserves points for a reward app. Expected refusals come back as an
// outcome; an error means the store failed and nothing changed.
func (l *Ledger) Unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.book.load(ctx)
	if err != nil {
		return UnlockResult{}, fmt.Errorf("unlock %s: %w", req.TokenHash, err)
	}

	ppm := req.PointsPerMinute
	app, known := l.catalog.App(req.TokenHash)
	if known && !app.IsReward() {
		return UnlockResult{}, fmt.Errorf("unlock %s (%s): %w", req.TokenHash, app.Category, models.ErrNotRewardApp)
	}
	if ppm <= 0 {
		if !known {
			return UnlockResult{}, fmt.Errorf("unlock %s: %w", req.TokenHash, models.ErrUnknownApp)
		}
		ppm = app.PointsPerMinute
	}
	if ppm <= 0 {
		return UnlockResult{}, fmt.Errorf("unlock %s: no points rate configured", req.TokenHash)
	}

	existing, unlocked := state.Unlocked[req.TokenHash]
	needed := max(l.minimum(req.IsChallenge), req.Minutes) * ppm
	if unlocked && req.Extend {
		needed = max(l.minimum(req.IsChallenge), req.Minutes) * existing.PointsPerMinute
	}
	result := UnlockResult{PointsNeeded: needed, Available: l.available(ctx, state, req.RewardTokens)}

	if unlocked && !req.Extend {
		result.Outcome = OutcomeAlreadyUnlocked
		result.Entry = existing
		return l.refused(req, result), nil
	}
	if ok, reason := l.CanUnlock(ctx, req.TokenHash); !ok {
		result.Outcome = OutcomeBlocked
		result.Reason = reason
		return l.refused(req, result), nil
	}
	if !req.BypassValidation && result.Available < needed {
		result.Outcome = OutcomeInsufficientPoints
		return l.refused(req, result), nil
	}

	next := state.Clone()
	var entry *models.UnlockedRewardApp
	if unlocked {
		entry = next.Unlocked[req.TokenHash]
		entry.ReservedPoints += needed
		result.Outcome = OutcomeExtended
	} else {
		logicalID := req.TokenHash
		if known {
			logicalID = app.LogicalID
		}
		entry = &models.UnlockedRewardApp{
			TokenHash:         req.TokenHash,
			LogicalID:         logicalID,
			ReservedPoints:    needed,
			PointsPerMinute:   ppm,
			UnlockedAt:        l.clock.Now(),
			IsChallengeReward: req.IsChallenge,
		}
		next.Unlocked[req.TokenHash] = entry
		result.Outcome = OutcomeUnlocked
	}
	delete(next.Expired, req.TokenHash)

	if err := l.book.commit(ctx, state, next); err != nil {
		return UnlockResult{}, fmt.Errorf("unlock %s: %w", req.TokenHash, err)
	}

	copied := *entry
	result.Entry = &copied
	result.Available = l.available(ctx, next, req.RewardTokens)
	l.metrics.IncUnlocks(string(result.Outcome))
	l.logger.Infof(providers.TypeLedger, "%s %s: reserved %d points (%d total)", result.Outcome, req.TokenHash, needed, entry.ReservedPoints)

	l.apply(ctx, req.TokenHash)
	return result, nil
}

func (l *Ledger) refused(req UnlockRequest, result UnlockResult) UnlockResult {
	l.metrics.IncUnlocks(string(result.Outcome))
	l.logger.Infof(providers.TypeLedger, "unlock %s refused: %s needed=%d available=%d", req.TokenHash, result.Outcome, result.PointsNeeded, result.Available)
	return result
}

// Consume bills usageSeconds of reward app use against its reservation.
// Whole minutes are billed; the sub-minute rest carries to the next call.
// Challenge unlocks never add to the consumed total.
func (l *Ledger) Consume(ctx context.Context, tokenHash string, usageSeconds int) (ConsumeOutcome, error) {
	if usageSeconds <= 0 {
		return ConsumeOutcome{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.book.load(ctx)
	if err != nil {
		return ConsumeOutcome{}, fmt.Errorf("consume %s: %w", tokenHash, err)
	}
	if _, ok := state.Unlocked[tokenHash]; !ok {
		return ConsumeOutcome{}, nil
	}

	next := state.Clone()
	entry := next.Unlocked[tokenHash]
	seconds := usageSeconds + entry.CarrySeconds
	points := (seconds / 60) * entry.PointsPerMinute
	applied := min(points, entry.ReservedPoints)

	entry.ReservedPoints -= applied
	entry.CarrySeconds = seconds % 60
	today := l.clock.StartOfDay(l.clock.Now())
	if !entry.IsChallengeReward {
		next.AddConsumed(applied, today)
	}

	out := ConsumeOutcome{Found: true, Consumed: applied, RemainingReserved: entry.ReservedPoints}
	if entry.ReservedPoints <= 0 {
		delete(next.Unlocked, tokenHash)
		next.Expired[tokenHash] = today
		out.Expired = true
		out.RemainingReserved = 0
	}

	if err := l.book.commit(ctx, state, next); err != nil {
		return ConsumeOutcome{}, fmt.Errorf("consume %s: %w", tokenHash, err)
	}

	l.metrics.AddPointsConsumed(applied)
	l.logger.Infof(providers.TypeLedger, "consumed %d points from %s, %d left", applied, tokenHash, out.RemainingReserved)
	if out.Expired {
		l.logger.Infof(providers.TypeLedger, "reward time expired for %s", tokenHash)
		l.apply(ctx, tokenHash)
	}
	return out, nil
}

// Lock ends a redemption early. The unused reservation returns to the pool;
// consumed points stay consumed.
func (l *Ledger) Lock(ctx context.Context, tokenHash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.book.load(ctx)
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", tokenHash, err)
	}
	entry, ok := state.Unlocked[tokenHash]
	if !ok {
		return false, nil
	}

	next := state.Clone()
	delete(next.Unlocked, tokenHash)
	if err := l.book.commit(ctx, state, next); err != nil {
		return false, fmt.Errorf("lock %s: %w", tokenHash, err)
	}

	l.logger.Infof(providers.TypeLedger, "locked %s, released %d points", tokenHash, entry.ReservedPoints)
	l.apply(ctx, tokenHash)
	return true, nil
}

// apply pushes the new block state for tokenHash. Failures are left to the
// periodic refresh.
func (l *Ledger) apply(ctx context.Context, tokenHash string) {
	if l.gate == nil {
		return
	}
	if _, err := l.gate.Apply(ctx, tokenHash); err != nil {
		l.logger.Warnf(providers.TypeLedger, "unable to apply block state for %s: %s", tokenHash, err)
	}
}
