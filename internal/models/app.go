package models

import (
	"fmt"
	"strings"
)

// AppHandle is the opaque, process-local handle the platform hands out for a
// monitored app. It is only good for display and blocking in the process that
// obtained it; persisted state is keyed by its token hash instead.
type AppHandle []byte

type Category string

const (
	CategoryLearning Category = "learning"
	CategoryReward   Category = "reward"
)

func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryLearning:
		return CategoryLearning, nil
	case CategoryReward:
		return CategoryReward, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type AppIdentity struct {
	TokenHash       string   `json:"token_hash"`
	LogicalID       string   `json:"logical_id"`
	Category        Category `json:"category"`
	DisplayName     string   `json:"display_name"`
	PointsPerMinute int      `json:"points_per_minute"`
}

func (a AppIdentity) IsReward() bool {
	return a.Category == CategoryReward
}
