// Package blocking decides, per reward app, whether it must be shielded right
// now and pushes the resulting commands to the enforcement side.
package blocking

import (
	"context"
	"errors"
	"fmt"
	"strd/internal/catalog"
	"strd/internal/models"
	"strd/internal/providers"
	"sync"
	"time"
)

var ErrNoHandle = errors.New("no handle known for token")

// Blocker enforces or lifts the platform shield for one app.
type Blocker interface {
	ApplyBlock(ctx context.Context, handle models.AppHandle, reason models.BlockingReason) error
	RemoveBlock(ctx context.Context, handle models.AppHandle) error
}

type UnlockState interface {
	Unlocked(ctx context.Context, tokenHash string) (*models.UnlockedRewardApp, bool)
	RewardExpired(ctx context.Context, tokenHash string) bool
}

type GoalProgress interface {
	Status(ctx context.Context, rewardAppID string) models.GoalStatus
}

type UsageReader interface {
	TodaySeconds(ctx context.Context, logicalID string) int
}

type HandleSource interface {
	Handle(ctx context.Context, tokenHash string) (models.AppHandle, error)
}

type EngineInterface interface {
	Evaluate(ctx context.Context, tokenHash string) models.Decision
	HardRestriction(ctx context.Context, tokenHash string) (models.BlockingReason, bool)
	Apply(ctx context.Context, tokenHash string) (models.Decision, error)
	SyncAll(ctx context.Context, tokens []string) (SyncReport, error)
	Reset()
}

type SyncReport struct {
	Evaluated int      `json:"evaluated"`
	Blocked   int      `json:"blocked"`
	Unblocked int      `json:"unblocked"`
	Unchanged int      `json:"unchanged"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Changed reports whether any command was issued.
func (r SyncReport) Changed() bool {
	return r.Blocked+r.Unblocked > 0
}

type appliedState struct {
	blocked bool
	reason  models.BlockingReason
}

type Engine struct {
	clock   providers.Clock
	catalog *catalog.Catalog
	usage   UsageReader
	goals   GoalProgress
	unlocks UnlockState
	handles HandleSource
	blocker Blocker
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	mu      sync.Mutex
	applied map[string]appliedState
}

func NewEngine(clock providers.Clock, cat *catalog.Catalog, usage UsageReader, goals GoalProgress, unlocks UnlockState, handles HandleSource, blocker Blocker, logger providers.Logger, metrics providers.MetricsProviderInterface) *Engine {
	return &Engine{
		clock:   clock,
		catalog: cat,
		usage:   usage,
		goals:   goals,
		unlocks: unlocks,
		handles: handles,
		blocker: blocker,
		logger:  logger,
		metrics: metrics,
		applied: make(map[string]appliedState),
	}
}

// Evaluate collects every active blocking reason for tokenHash. Reasons are
// checked in priority order so the first one found is the primary reason.
// A missing schedule or goal set removes that axis.
func (e *Engine) Evaluate(ctx context.Context, tokenHash string) models.Decision {
	now := e.clock.Now()
	d := models.Decision{
		TokenHash:        tokenHash,
		LogicalID:        e.catalog.LogicalID(tokenHash),
		PrimaryReason:    models.ReasonNone,
		AllActiveReasons: []models.BlockingReason{},
		EvaluatedAt:      now,
	}

	sched := e.catalog.Schedule(d.LogicalID)
	if w, ok := sched.ActiveWindow(now); ok {
		d.Window = &w
		d.AllActiveReasons = append(d.AllActiveReasons, models.ReasonDowntime)
	}

	if sched.HasDailyLimit() {
		used := e.usage.TodaySeconds(ctx, d.LogicalID)
		d.LimitMinutes = *sched.DailyLimitMinutes
		d.UsedMinutes = used / 60
		if used >= d.LimitMinutes*60 {
			d.AllActiveReasons = append(d.AllActiveReasons, models.ReasonDailyLimitReached)
		}
	}

	_, unlocked := e.unlocks.Unlocked(ctx, tokenHash)

	status := e.goals.Status(ctx, d.LogicalID)
	if status.HasGoals() {
		d.TargetMinutes = status.TargetMinutes
		d.CurrentMinutes = status.CurrentMinutes
		if !status.Satisfied && !unlocked {
			d.AllActiveReasons = append(d.AllActiveReasons, models.ReasonLearningGoal)
		}
	}

	if !unlocked && e.unlocks.RewardExpired(ctx, tokenHash) {
		d.AllActiveReasons = append(d.AllActiveReasons, models.ReasonRewardTimeExpired)
	}

	if len(d.AllActiveReasons) > 0 {
		d.ShouldBlock = true
		d.PrimaryReason = d.AllActiveReasons[0]
	}
	return d
}

// HardRestriction returns the highest active reason that refuses redemption.
func (e *Engine) HardRestriction(ctx context.Context, tokenHash string) (models.BlockingReason, bool) {
	for _, r := range e.Evaluate(ctx, tokenHash).AllActiveReasons {
		if r.Hard() {
			return r, true
		}
	}
	return models.ReasonNone, false
}

// Apply evaluates tokenHash and issues its command whether or not it changed.
func (e *Engine) Apply(ctx context.Context, tokenHash string) (models.Decision, error) {
	d := e.Evaluate(ctx, tokenHash)

	e.mu.Lock()
	defer e.mu.Unlock()
	return d, e.issue(ctx, d)
}

// SyncAll issues commands only for tokens whose decision changed since the
// last successful command. Nil tokens means every configured reward app.
// Tokens without a known handle are skipped and reported.
func (e *Engine) SyncAll(ctx context.Context, tokens []string) (SyncReport, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveSyncDuration(time.Since(start)) }()

	if tokens == nil {
		tokens = e.catalog.RewardTokens()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var report SyncReport
	var errs []error
	for _, token := range tokens {
		d := e.Evaluate(ctx, token)
		report.Evaluated++

		if prev, ok := e.applied[token]; ok && prev.blocked == d.ShouldBlock && prev.reason == d.PrimaryReason {
			report.Unchanged++
			continue
		}

		err := e.issue(ctx, d)
		switch {
		case errors.Is(err, ErrNoHandle):
			report.Skipped = append(report.Skipped, token)
		case err != nil:
			report.Failed = append(report.Failed, token)
			errs = append(errs, err)
		case d.ShouldBlock:
			report.Blocked++
		default:
			report.Unblocked++
		}
	}

	if report.Changed() || len(report.Failed) > 0 {
		e.logger.Infof(providers.TypeSync, "sync: %d evaluated, %d blocked, %d unblocked, %d skipped, %d failed",
			report.Evaluated, report.Blocked, report.Unblocked, len(report.Skipped), len(report.Failed))
	}
	return report, errors.Join(errs...)
}

// Reset forgets what was applied so the next sync re-issues everything.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied = make(map[string]appliedState)
}

// issue sends the command for d. Callers hold e.mu.
func (e *Engine) issue(ctx context.Context, d models.Decision) error {
	handle, err := e.handle(ctx, d.TokenHash)
	if err != nil {
		return err
	}

	if d.ShouldBlock {
		err = e.blocker.ApplyBlock(ctx, handle, d.PrimaryReason)
	} else {
		err = e.blocker.RemoveBlock(ctx, handle)
	}
	if err != nil {
		e.logger.Errorf(providers.TypeSync, "block command for %s failed: %s", d.TokenHash, err)
		return fmt.Errorf("command for %s: %w", d.TokenHash, err)
	}

	action := "unblock"
	if d.ShouldBlock {
		action = "block"
	}
	e.metrics.IncBlockCommands(action)
	e.applied[d.TokenHash] = appliedState{blocked: d.ShouldBlock, reason: d.PrimaryReason}
	e.logger.Debugf(providers.TypeSync, "%s %s (%s)", action, d.TokenHash, d.PrimaryReason)
	return nil
}

// handle resolves the opaque handle through the shared side table, falling
// back to the configured one.
func (e *Engine) handle(ctx context.Context, tokenHash string) (models.AppHandle, error) {
	if e.handles != nil {
		h, err := e.handles.Handle(ctx, tokenHash)
		if err == nil && len(h) > 0 {
			return h, nil
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			e.logger.Warnf(providers.TypeSync, "handle lookup for %s failed: %s", tokenHash, err)
		}
	}
	if h, ok := e.catalog.Handle(tokenHash); ok {
		return h, nil
	}
	return nil, fmt.Errorf("%s: %w", tokenHash, ErrNoHandle)
}
