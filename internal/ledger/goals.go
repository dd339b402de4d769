package ledger

import (
	"context"
	"strd/internal/catalog"
	"strd/internal/models"
)

type UsageReader interface {
	TodayMinutes(ctx context.Context, logicalID string) int
}

// Goals evaluates the learning goals linked to each reward app against
// today's usage.
type Goals struct {
	catalog *catalog.Catalog
	usage   UsageReader
}

func NewGoals(cat *catalog.Catalog, usage UsageReader) *Goals {
	return &Goals{catalog: cat, usage: usage}
}

// Status evaluates every goal linked to rewardAppID. The reward app follows
// All semantics when any of its goals asks for All.
//
// All: credit is the sum of min(actual, target) once every goal is met, zero
// before that. Any: credit is the largest min(actual, target) among the goals
// met individually. An app without goals is satisfied and earns nothing.
func (g *Goals) Status(ctx context.Context, rewardAppID string) models.GoalStatus {
	goals := g.catalog.GoalsFor(rewardAppID)
	status := models.GoalStatus{
		RewardAppID: rewardAppID,
		Mode:        models.UnlockAny,
		Linked:      len(goals),
		Goals:       make([]models.GoalProgress, 0, len(goals)),
	}
	if len(goals) == 0 {
		status.Satisfied = true
		return status
	}

	allCredit, bestCredit := 0, 0
	for _, goal := range goals {
		if goal.UnlockMode == models.UnlockAll {
			status.Mode = models.UnlockAll
		}
		current := g.usage.TodayMinutes(ctx, goal.LearningAppID)
		credit := min(current, goal.TargetMinutes)
		met := current >= goal.TargetMinutes

		status.TargetMinutes += goal.TargetMinutes
		status.CurrentMinutes += credit
		status.Goals = append(status.Goals, models.GoalProgress{
			LearningAppID:  goal.LearningAppID,
			TargetMinutes:  goal.TargetMinutes,
			CurrentMinutes: current,
			Met:            met,
		})

		allCredit += credit
		if met {
			status.Met++
			bestCredit = max(bestCredit, credit)
		}
	}

	if status.Mode == models.UnlockAll {
		status.Satisfied = status.Met == status.Linked
		if status.Satisfied {
			status.EarnedMinutes = allCredit
		}
	} else {
		status.Satisfied = status.Met > 0
		status.EarnedMinutes = bestCredit
	}
	return status
}

func (g *Goals) EarnedMinutes(ctx context.Context, rewardAppID string) int {
	return g.Status(ctx, rewardAppID).EarnedMinutes
}
