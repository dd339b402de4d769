package models

import "time"

type BlockingReason string

const (
	ReasonDowntime          BlockingReason = "downtime"
	ReasonDailyLimitReached BlockingReason = "dailyLimitReached"
	ReasonLearningGoal      BlockingReason = "learningGoal"
	ReasonRewardTimeExpired BlockingReason = "rewardTimeExpired"
	ReasonNone              BlockingReason = "none"
)

// ReasonPriority lists blocking reasons from highest to lowest priority.
var ReasonPriority = []BlockingReason{
	ReasonDowntime,
	ReasonDailyLimitReached,
	ReasonLearningGoal,
	ReasonRewardTimeExpired,
}

func (r BlockingReason) Priority() int {
	for i, p := range ReasonPriority {
		if p == r {
			return i
		}
	}
	return len(ReasonPriority)
}

// Hard reports whether redemption is refused while the reason is active.
func (r BlockingReason) Hard() bool {
	return r == ReasonDowntime || r == ReasonDailyLimitReached
}

type Decision struct {
	TokenHash        string           `json:"token_hash"`
	LogicalID        string           `json:"logical_id"`
	ShouldBlock      bool             `json:"should_block"`
	PrimaryReason    BlockingReason   `json:"primary_reason"`
	AllActiveReasons []BlockingReason `json:"all_active_reasons"`
	Window           *DowntimeWindow  `json:"window,omitempty"`
	LimitMinutes     int              `json:"limit_minutes,omitempty"`
	UsedMinutes      int              `json:"used_minutes,omitempty"`
	TargetMinutes    int              `json:"target_minutes,omitempty"`
	CurrentMinutes   int              `json:"current_minutes,omitempty"`
	EvaluatedAt      time.Time        `json:"evaluated_at"`
}

func (d Decision) Has(reason BlockingReason) bool {
	for _, r := range d.AllActiveReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// ShieldCommand is the published block state for one app, read by the
// enforcement agent that owns the platform shield.
type ShieldCommand struct {
	TokenHash string         `json:"token_hash"`
	Blocked   bool           `json:"blocked"`
	Reason    BlockingReason `json:"reason"`
	Handle    AppHandle      `json:"handle,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
