package models

import "time"

// UnlockedRewardApp is a live redemption. ReservedPoints only shrinks by
// consumption; the entry disappears when it reaches zero or on explicit lock.
type UnlockedRewardApp struct {
	TokenHash         string    `json:"token_hash"`
	LogicalID         string    `json:"logical_id"`
	ReservedPoints    int       `json:"reserved_points"`
	PointsPerMinute   int       `json:"points_per_minute"`
	UnlockedAt        time.Time `json:"unlocked_at"`
	IsChallengeReward bool      `json:"is_challenge_reward"`
	CarrySeconds      int       `json:"carry_seconds,omitempty"`
}

func (u *UnlockedRewardApp) RemainingMinutes() int {
	if u.PointsPerMinute <= 0 {
		return 0
	}
	return u.ReservedPoints / u.PointsPerMinute
}

// LedgerState is persisted as a single record so every ledger mutation is a
// single-key read-modify-write. Expired maps a token hash to the start of the
// day its reservation ran out.
//
// TotalConsumedPoints is the lifetime total and never decreases.
// DayConsumedPoints is the part consumed since ConsumedDay; earnings are
// counted per day, so only that part is charged against today's balance.
type LedgerState struct {
	TotalConsumedPoints int                           `json:"total_consumed_points"`
	DayConsumedPoints   int                           `json:"day_consumed_points"`
	ConsumedDay         time.Time                     `json:"consumed_day"`
	Unlocked            map[string]*UnlockedRewardApp `json:"unlocked"`
	Expired             map[string]time.Time          `json:"expired"`
	UpdatedAt           time.Time                     `json:"updated_at"`
}

func NewLedgerState() *LedgerState {
	return &LedgerState{
		Unlocked: make(map[string]*UnlockedRewardApp),
		Expired:  make(map[string]time.Time),
	}
}

func (s *LedgerState) TotalReserved() int {
	total := 0
	for _, u := range s.Unlocked {
		total += u.ReservedPoints
	}
	return total
}

// ConsumedOn returns the points consumed during the day starting at day.
func (s *LedgerState) ConsumedOn(day time.Time) int {
	if s.ConsumedDay.Equal(day) {
		return s.DayConsumedPoints
	}
	return 0
}

func (s *LedgerState) AddConsumed(points int, day time.Time) {
	if points <= 0 {
		return
	}
	if !s.ConsumedDay.Equal(day) {
		s.ConsumedDay = day
		s.DayConsumedPoints = 0
	}
	s.DayConsumedPoints += points
	s.TotalConsumedPoints += points
}

// ExpiredOn reports whether tokenHash ran out of reserved time during day.
func (s *LedgerState) ExpiredOn(tokenHash string, day time.Time) bool {
	at, ok := s.Expired[tokenHash]
	return ok && at.Equal(day)
}

func (s *LedgerState) Clone() *LedgerState {
	c := &LedgerState{
		TotalConsumedPoints: s.TotalConsumedPoints,
		DayConsumedPoints:   s.DayConsumedPoints,
		ConsumedDay:         s.ConsumedDay,
		Unlocked:            make(map[string]*UnlockedRewardApp, len(s.Unlocked)),
		Expired:             make(map[string]time.Time, len(s.Expired)),
		UpdatedAt:           s.UpdatedAt,
	}
	for k, v := range s.Unlocked {
		entry := *v
		c.Unlocked[k] = &entry
	}
	for k, v := range s.Expired {
		c.Expired[k] = v
	}
	return c
}

// Normalize replaces nil maps left by decoding an older or empty record.
func (s *LedgerState) Normalize() {
	if s.Unlocked == nil {
		s.Unlocked = make(map[string]*UnlockedRewardApp)
	}
	if s.Expired == nil {
		s.Expired = make(map[string]time.Time)
	}
}
