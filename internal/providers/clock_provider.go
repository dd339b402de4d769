package providers

import (
	"fmt"
	"strd/internal/structures"
	"time"
)

// Clock is the single source of "now" and of the day boundary. Both
// processes must agree on StartOfDay, so it is always local midnight in the
// configured zone.
type Clock interface {
	Now() time.Time
	StartOfDay(t time.Time) time.Time
	Location() *time.Location
}

type SystemClock struct {
	loc *time.Location
}

func NewClock(conf *structures.Config) (Clock, error) {
	name := conf.Rewards.Timezone
	if name == "" {
		name = "Local"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unable to load timezone %q: %w", name, err)
	}
	return &SystemClock{loc: loc}, nil
}

func NewClockIn(loc *time.Location) Clock {
	return &SystemClock{loc: loc}
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) StartOfDay(t time.Time) time.Time {
	return StartOfDay(t, c.loc)
}

func (c *SystemClock) Location() *time.Location {
	return c.loc
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
