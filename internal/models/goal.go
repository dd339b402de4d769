package models

import (
	"fmt"
	"strings"
)

type UnlockMode string

const (
	// UnlockAll credits nothing until every linked goal is met.
	UnlockAll UnlockMode = "all"
	// UnlockAny credits the best individually met goal.
	UnlockAny UnlockMode = "any"
)

func ParseUnlockMode(s string) (UnlockMode, error) {
	switch UnlockMode(strings.ToLower(strings.TrimSpace(s))) {
	case UnlockAll, "":
		return UnlockAll, nil
	case UnlockAny:
		return UnlockAny, nil
	}
	return "", fmt.Errorf("unknown unlock mode %q", s)
}

type LinkedLearningGoal struct {
	RewardAppID   string     `json:"reward_app_id"`
	LearningAppID string     `json:"learning_app_id"`
	TargetMinutes int        `json:"target_minutes"`
	UnlockMode    UnlockMode `json:"unlock_mode"`
}

type GoalProgress struct {
	LearningAppID  string `json:"learning_app_id"`
	TargetMinutes  int    `json:"target_minutes"`
	CurrentMinutes int    `json:"current_minutes"`
	Met            bool   `json:"met"`
}

// GoalStatus is the evaluated state of every goal linked to one reward app.
type GoalStatus struct {
	RewardAppID    string         `json:"reward_app_id"`
	Mode           UnlockMode     `json:"mode"`
	Linked         int            `json:"linked"`
	Met            int            `json:"met"`
	Satisfied      bool           `json:"satisfied"`
	EarnedMinutes  int            `json:"earned_minutes"`
	TargetMinutes  int            `json:"target_minutes"`
	CurrentMinutes int            `json:"current_minutes"`
	Goals          []GoalProgress `json:"goals,omitempty"`
}

func (g GoalStatus) HasGoals() bool {
	return g.Linked > 0
}
