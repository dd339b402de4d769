// Package catalog holds the guardian configuration: monitored apps, linked
// learning goals and schedules. It is read-only after construction.
package catalog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strd/internal/identity"
	"strd/internal/models"
	"strd/internal/structures"
	"strings"
)

type Catalog struct {
	apps      []models.AppIdentity
	byToken   map[string]models.AppIdentity
	byLogical map[string]models.AppIdentity
	handles   map[string]models.AppHandle
	goals     map[string][]models.LinkedLearningGoal
	schedules map[string]*models.ScheduleConfiguration
}

// New builds the catalog from configuration. A catalog with duplicate
// display names is refused with a *ConflictError.
func New(conf *structures.Config) (*Catalog, error) {
	c := &Catalog{
		byToken:   make(map[string]models.AppIdentity),
		byLogical: make(map[string]models.AppIdentity),
		handles:   make(map[string]models.AppHandle),
		goals:     make(map[string][]models.LinkedLearningGoal),
		schedules: make(map[string]*models.ScheduleConfiguration),
	}

	for i, ac := range conf.Apps {
		app, handle, err := parseApp(ac)
		if err != nil {
			return nil, fmt.Errorf("apps[%d]: %w", i, err)
		}
		if _, dup := c.byToken[app.TokenHash]; dup {
			return nil, fmt.Errorf("apps[%d]: handle listed twice", i)
		}
		if _, dup := c.byLogical[app.LogicalID]; dup {
			return nil, fmt.Errorf("apps[%d]: logical id %s: %w", i, app.LogicalID, models.ErrIdentityConflict)
		}
		c.apps = append(c.apps, app)
		c.byToken[app.TokenHash] = app
		c.byLogical[app.LogicalID] = app
		c.handles[app.TokenHash] = handle
	}

	if conflicts := CheckConflicts(c.apps); len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	for i, gc := range conf.Goals {
		goal, err := c.parseGoal(gc)
		if err != nil {
			return nil, fmt.Errorf("goals[%d]: %w", i, err)
		}
		c.goals[goal.RewardAppID] = append(c.goals[goal.RewardAppID], goal)
	}

	for i, sc := range conf.Schedules {
		sched, err := c.parseSchedule(sc)
		if err != nil {
			return nil, fmt.Errorf("schedules[%d]: %w", i, err)
		}
		if _, dup := c.schedules[sched.AppID]; dup {
			return nil, fmt.Errorf("schedules[%d]: second schedule for %s", i, sched.AppID)
		}
		c.schedules[sched.AppID] = sched
	}
	return c, nil
}

func parseApp(ac structures.AppConfig) (models.AppIdentity, models.AppHandle, error) {
	raw, err := base64.StdEncoding.DecodeString(ac.Handle)
	if err != nil {
		return models.AppIdentity{}, nil, fmt.Errorf("handle is not base64: %w", err)
	}
	if len(raw) == 0 {
		return models.AppIdentity{}, nil, errors.New("handle is empty")
	}
	category, err := models.ParseCategory(ac.Category)
	if err != nil {
		return models.AppIdentity{}, nil, err
	}
	if ac.PointsPerMinute < 0 {
		return models.AppIdentity{}, nil, errors.New("pointsPerMinute is negative")
	}

	handle := models.AppHandle(raw)
	app := models.AppIdentity{
		TokenHash:       identity.Hash(handle),
		LogicalID:       strings.TrimSpace(ac.LogicalID),
		Category:        category,
		DisplayName:     strings.TrimSpace(ac.DisplayName),
		PointsPerMinute: ac.PointsPerMinute,
	}
	if app.LogicalID == "" {
		app.LogicalID = app.TokenHash
	}
	return app, handle, nil
}

func (c *Catalog) parseGoal(gc structures.GoalConfig) (models.LinkedLearningGoal, error) {
	reward, ok := c.byLogical[gc.RewardAppID]
	if !ok {
		return models.LinkedLearningGoal{}, fmt.Errorf("reward app %s: %w", gc.RewardAppID, models.ErrUnknownApp)
	}
	if !reward.IsReward() {
		return models.LinkedLearningGoal{}, fmt.Errorf("%s is not a reward app", gc.RewardAppID)
	}
	learning, ok := c.byLogical[gc.LearningAppID]
	if !ok {
		return models.LinkedLearningGoal{}, fmt.Errorf("learning app %s: %w", gc.LearningAppID, models.ErrUnknownApp)
	}
	if learning.IsReward() {
		return models.LinkedLearningGoal{}, fmt.Errorf("%s is not a learning app", gc.LearningAppID)
	}
	if gc.TargetMinutes < 0 {
		return models.LinkedLearningGoal{}, errors.New("targetMinutes is negative")
	}
	mode, err := models.ParseUnlockMode(gc.UnlockMode)
	if err != nil {
		return models.LinkedLearningGoal{}, err
	}
	return models.LinkedLearningGoal{
		RewardAppID:   gc.RewardAppID,
		LearningAppID: gc.LearningAppID,
		TargetMinutes: gc.TargetMinutes,
		UnlockMode:    mode,
	}, nil
}

func (c *Catalog) parseSchedule(sc structures.ScheduleConfig) (*models.ScheduleConfiguration, error) {
	if _, ok := c.byLogical[sc.AppID]; !ok {
		return nil, fmt.Errorf("app %s: %w", sc.AppID, models.ErrUnknownApp)
	}
	if sc.DailyLimitMinutes != nil && *sc.DailyLimitMinutes < 0 {
		return nil, errors.New("dailyLimitMinutes is negative")
	}

	sched := &models.ScheduleConfiguration{AppID: sc.AppID}
	if sc.DailyLimitMinutes != nil {
		limit := *sc.DailyLimitMinutes
		sched.DailyLimitMinutes = &limit
	}
	for j, wc := range sc.DowntimeWindows {
		day, err := models.ParseWeekday(wc.Weekday)
		if err != nil {
			return nil, fmt.Errorf("downtimeWindows[%d]: %w", j, err)
		}
		w := models.DowntimeWindow{
			Weekday:     day,
			StartHour:   wc.StartHour,
			StartMinute: wc.StartMinute,
			EndHour:     wc.EndHour,
			EndMinute:   wc.EndMinute,
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("downtimeWindows[%d]: %w", j, err)
		}
		sched.DowntimeWindows = append(sched.DowntimeWindows, w)
	}
	return sched, nil
}

// Apps returns every configured app in configuration order.
func (c *Catalog) Apps() []models.AppIdentity {
	return append([]models.AppIdentity(nil), c.apps...)
}

func (c *Catalog) App(tokenHash string) (models.AppIdentity, bool) {
	app, ok := c.byToken[tokenHash]
	return app, ok
}

func (c *Catalog) ByLogicalID(logicalID string) (models.AppIdentity, bool) {
	app, ok := c.byLogical[logicalID]
	return app, ok
}

// LogicalID maps a token hash to its configured logical ID. Unknown tokens
// map to themselves.
func (c *Catalog) LogicalID(tokenHash string) string {
	if app, ok := c.byToken[tokenHash]; ok {
		return app.LogicalID
	}
	return tokenHash
}

func (c *Catalog) Handle(tokenHash string) (models.AppHandle, bool) {
	h, ok := c.handles[tokenHash]
	return h, ok
}

// RewardTokens returns the token hashes of every reward app, sorted.
func (c *Catalog) RewardTokens() []string {
	tokens := make([]string, 0, len(c.apps))
	for _, app := range c.apps {
		if app.IsReward() {
			tokens = append(tokens, app.TokenHash)
		}
	}
	sort.Strings(tokens)
	return tokens
}

func (c *Catalog) GoalsFor(rewardAppID string) []models.LinkedLearningGoal {
	return append([]models.LinkedLearningGoal(nil), c.goals[rewardAppID]...)
}

// Schedule returns nil when the app has no schedule.
func (c *Catalog) Schedule(appID string) *models.ScheduleConfiguration {
	return c.schedules[appID]
}

// Registrar persists identities into the shared store.
type Registrar interface {
	Assign(ctx context.Context, tokenHash, logicalID string, hasHistory identity.HistoryFunc) error
	RememberHandle(ctx context.Context, tokenHash string, handle models.AppHandle) error
	Reissued(ctx context.Context, tokenHash string) (bool, error)
}

// Register writes the logical ID mapping and the handle side table entry for
// every configured app. Apps whose handle was reissued keep the live mapping.
// It stops at the first identity conflict.
func (c *Catalog) Register(ctx context.Context, reg Registrar, hasHistory identity.HistoryFunc) error {
	var errs []error
	for _, app := range c.apps {
		reissued, err := reg.Reissued(ctx, app.TokenHash)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if reissued {
			continue
		}
		if err := reg.Assign(ctx, app.TokenHash, app.LogicalID, hasHistory); err != nil {
			if errors.Is(err, models.ErrIdentityConflict) {
				return err
			}
			errs = append(errs, err)
			continue
		}
		if err := reg.RememberHandle(ctx, app.TokenHash, c.handles[app.TokenHash]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
