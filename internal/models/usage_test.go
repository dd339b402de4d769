package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	yesterday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	today     = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

func TestDailyUsageRecord_RolloverArchivesYesterday(t *testing.T) {
	r := NewDailyUsageRecord("reader", yesterday)
	r.Add(600, 9, 10)
	require.Equal(t, 600, r.TodaySeconds)

	rolled := r.Rollover(today, 30)

	assert.True(t, rolled)
	assert.Equal(t, 0, r.TodaySeconds)
	assert.Equal(t, 0, r.TodayPoints)
	assert.Equal(t, [HoursPerDay]int{}, r.HourlySeconds)
	assert.Equal(t, today, r.LastResetDate)
	require.Len(t, r.DailyHistory, 1)
	assert.Equal(t, DailyUsageSummary{Date: yesterday, Seconds: 600}, r.DailyHistory[0])
	assert.Equal(t, int64(600), r.LifetimeSeconds)
}

func TestDailyUsageRecord_RolloverIdempotent(t *testing.T) {
	r := NewDailyUsageRecord("reader", yesterday)
	r.Add(120, 8, 0)

	assert.True(t, r.Rollover(today, 30))
	r.Add(60, 10, 0)
	assert.False(t, r.Rollover(today, 30))

	assert.Equal(t, 60, r.TodaySeconds)
	assert.Len(t, r.DailyHistory, 1)
}

func TestDailyUsageRecord_HistoryBounded(t *testing.T) {
	r := NewDailyUsageRecord("reader", yesterday.AddDate(0, 0, -5))
	for d := 4; d >= 0; d-- {
		r.Add(60, 1, 0)
		r.Rollover(yesterday.AddDate(0, 0, -d), 3)
	}

	require.Len(t, r.DailyHistory, 3)
	assert.Equal(t, yesterday.AddDate(0, 0, -1), r.DailyHistory[2].Date)
}

func TestDailyUsageRecord_ZeroRecordRolloverSkipsHistory(t *testing.T) {
	r := &DailyUsageRecord{LogicalID: "new"}
	assert.True(t, r.Rollover(today, 30))
	assert.Empty(t, r.DailyHistory)
	assert.Equal(t, today, r.LastResetDate)
}

func TestDailyUsageRecord_AddKeepsHourlySum(t *testing.T) {
	r := NewDailyUsageRecord("reader", today)
	r.Add(30, 7, 10)
	r.Add(45, 7, 10)
	r.Add(50, 8, 10)

	sum := 0
	for _, s := range r.HourlySeconds {
		sum += s
	}
	assert.Equal(t, r.TodaySeconds, sum)
	assert.Equal(t, 125, r.TodaySeconds)
	assert.Equal(t, 2, r.TodayMinutes())
	assert.Equal(t, 20, r.TodayPoints)
}

func TestDailyUsageRecord_CloneIsIndependent(t *testing.T) {
	r := NewDailyUsageRecord("reader", yesterday)
	r.Add(60, 0, 0)
	r.Rollover(today, 0)

	c := r.Clone()
	c.DailyHistory[0].Seconds = 999
	c.HourlySeconds[3] = 5

	assert.Equal(t, 60, r.DailyHistory[0].Seconds)
	assert.Equal(t, 0, r.HourlySeconds[3])
}
