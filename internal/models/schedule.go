package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// DowntimeWindow blocks an app on Weekday from Start to End local time.
// A window whose end is before its start runs past midnight into the next
// weekday; a window whose end equals its start covers the whole weekday.
type DowntimeWindow struct {
	Weekday     time.Weekday `json:"weekday"`
	StartHour   int          `json:"start_hour"`
	StartMinute int          `json:"start_minute"`
	EndHour     int          `json:"end_hour"`
	EndMinute   int          `json:"end_minute"`
}

func (w DowntimeWindow) start() int { return w.StartHour*60 + w.StartMinute }
func (w DowntimeWindow) end() int   { return w.EndHour*60 + w.EndMinute }

func (w DowntimeWindow) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range", w.Weekday)
	}
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("hour out of range in window %s", w)
	}
	if w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return fmt.Errorf("minute out of range in window %s", w)
	}
	return nil
}

func (w DowntimeWindow) Contains(t time.Time) bool {
	wd := t.Weekday()
	m := t.Hour()*60 + t.Minute()
	start, end := w.start(), w.end()

	switch {
	case start == end:
		return wd == w.Weekday
	case start < end:
		return wd == w.Weekday && m >= start && m < end
	default:
		next := (w.Weekday + 1) % 7
		return (wd == w.Weekday && m >= start) || (wd == next && m < end)
	}
}

// Length is the window duration in minutes.
func (w DowntimeWindow) Length() int {
	d := w.end() - w.start()
	if d <= 0 {
		d += minutesPerDay
	}
	return d
}

func (w DowntimeWindow) String() string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", w.Weekday, w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}

// ParseWeekday accepts full or three letter English names and 0..6 (Sunday = 0).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range", n)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

type ScheduleConfiguration struct {
	AppID             string           `json:"app_id"`
	DailyLimitMinutes *int             `json:"daily_limit_minutes,omitempty"`
	DowntimeWindows   []DowntimeWindow `json:"downtime_windows"`
}

// ActiveWindow returns the first window containing t.
func (s *ScheduleConfiguration) ActiveWindow(t time.Time) (DowntimeWindow, bool) {
	if s == nil {
		return DowntimeWindow{}, false
	}
	for _, w := range s.DowntimeWindows {
		if w.Contains(t) {
			return w, true
		}
	}
	return DowntimeWindow{}, false
}

func (s *ScheduleConfiguration) HasDailyLimit() bool {
	return s != nil && s.DailyLimitMinutes != nil
}
