package models

import "time"

const HoursPerDay = 24

type DailyUsageSummary struct {
	Date    time.Time `json:"date"`
	Seconds int       `json:"seconds"`
}

// DailyUsageRecord holds one app's counters for the day starting at
// LastResetDate. TodaySeconds always equals the sum of HourlySeconds.
type DailyUsageRecord struct {
	LogicalID       string              `json:"logical_id"`
	Date            time.Time           `json:"date"`
	TodaySeconds    int                 `json:"today_seconds"`
	TodayPoints     int                 `json:"today_points"`
	HourlySeconds   [HoursPerDay]int    `json:"hourly_seconds"`
	HourlyPoints    [HoursPerDay]int    `json:"hourly_points"`
	LastResetDate   time.Time           `json:"last_reset_date"`
	LifetimeSeconds int64               `json:"lifetime_seconds"`
	DailyHistory    []DailyUsageSummary `json:"daily_history"`
}

func NewDailyUsageRecord(logicalID string, startOfDay time.Time) *DailyUsageRecord {
	return &DailyUsageRecord{
		LogicalID:     logicalID,
		Date:          startOfDay,
		LastResetDate: startOfDay,
	}
}

func (r *DailyUsageRecord) NeedsRollover(startOfDay time.Time) bool {
	return r.LastResetDate.Before(startOfDay)
}

// Rollover archives the current day into DailyHistory and zeroes the day
// counters. It reports false and changes nothing when the record already
// belongs to startOfDay. historyDays <= 0 keeps the whole history.
func (r *DailyUsageRecord) Rollover(startOfDay time.Time, historyDays int) bool {
	if !r.NeedsRollover(startOfDay) {
		return false
	}
	if !r.LastResetDate.IsZero() {
		r.DailyHistory = append(r.DailyHistory, DailyUsageSummary{
			Date:    r.LastResetDate,
			Seconds: r.TodaySeconds,
		})
		if historyDays > 0 && len(r.DailyHistory) > historyDays {
			r.DailyHistory = append([]DailyUsageSummary(nil), r.DailyHistory[len(r.DailyHistory)-historyDays:]...)
		}
	}
	r.TodaySeconds = 0
	r.TodayPoints = 0
	r.HourlySeconds = [HoursPerDay]int{}
	r.HourlyPoints = [HoursPerDay]int{}
	r.LastResetDate = startOfDay
	r.Date = startOfDay
	return true
}

// Add credits seconds to the given hour. Points accrue per completed minute
// of the day total, so splitting a minute across samples loses nothing.
func (r *DailyUsageRecord) Add(seconds, hour, pointsPerMinute int) {
	before := r.TodaySeconds
	r.TodaySeconds += seconds
	r.HourlySeconds[hour] += seconds
	r.LifetimeSeconds += int64(seconds)

	if pointsPerMinute > 0 {
		earned := (r.TodaySeconds/60 - before/60) * pointsPerMinute
		r.TodayPoints += earned
		r.HourlyPoints[hour] += earned
	}
}

func (r *DailyUsageRecord) TodayMinutes() int {
	return r.TodaySeconds / 60
}

func (r *DailyUsageRecord) Clone() *DailyUsageRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.DailyHistory != nil {
		c.DailyHistory = make([]DailyUsageSummary, len(r.DailyHistory))
		copy(c.DailyHistory, r.DailyHistory)
	}
	return &c
}
