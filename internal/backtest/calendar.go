package backtest

import (
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// Calendar decides which dates are trading sessions
type Calendar interface {
	IsTradingDay(date time.Time) bool
	// Next returns the first trading day strictly after date
	Next(date time.Time) time.Time
	// Prev returns the last trading day strictly before date
	Prev(date time.Time) time.Time
}

// WeekdayCalendar treats every Monday through Friday as a session
type WeekdayCalendar struct{}

// IsTradingDay implements Calendar
func (WeekdayCalendar) IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Next implements Calendar
func (c WeekdayCalendar) Next(date time.Time) time.Time {
	d := contracts.Day(date).AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Prev implements Calendar
func (c WeekdayCalendar) Prev(date time.Time) time.Time {
	d := contracts.Day(date).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// SessionCalendar uses an explicit set of session dates, so holidays are skipped.
// Past the last known session it falls back to weekdays.
type SessionCalendar struct {
	days []time.Time
	set  map[time.Time]struct{}
}

// NewSessionCalendar builds a calendar from session dates (any order, duplicates ok)
func NewSessionCalendar(dates []time.Time) *SessionCalendar {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[contracts.Day(d)] = struct{}{}
	}
	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return &SessionCalendar{days: days, set: set}
}

// IsTradingDay implements Calendar
func (c *SessionCalendar) IsTradingDay(date time.Time) bool {
	d := contracts.Day(date)
	if c.beyond(d) {
		return WeekdayCalendar{}.IsTradingDay(d)
	}
	_, ok := c.set[d]
	return ok
}

// Next implements Calendar
func (c *SessionCalendar) Next(date time.Time) time.Time {
	d := contracts.Day(date)
	idx := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(d) })
	if idx < len(c.days) {
		return c.days[idx]
	}
	return WeekdayCalendar{}.Next(d)
}

// Prev implements Calendar
func (c *SessionCalendar) Prev(date time.Time) time.Time {
	d := contracts.Day(date)
	if len(c.days) == 0 {
		return WeekdayCalendar{}.Prev(d)
	}
	if last := c.days[len(c.days)-1]; d.After(last) {
		if p := (WeekdayCalendar{}).Prev(d); p.After(last) {
			return p
		}
		return last
	}
	idx := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
	if idx > 0 {
		return c.days[idx-1]
	}
	return WeekdayCalendar{}.Prev(d)
}

// Sessions returns the known session dates in ascending order
func (c *SessionCalendar) Sessions() []time.Time {
	return c.days
}

func (c *SessionCalendar) beyond(d time.Time) bool {
	return len(c.days) == 0 || d.Before(c.days[0]) || d.After(c.days[len(c.days)-1])
}

// onOrBefore returns the last trading day <= date
func onOrBefore(cal Calendar, date time.Time) time.Time {
	d := contracts.Day(date)
	if cal.IsTradingDay(d) {
		return d
	}
	return cal.Prev(d)
}

// onOrAfter returns the first trading day >= date
func onOrAfter(cal Calendar, date time.Time) time.Time {
	d := contracts.Day(date)
	if cal.IsTradingDay(d) {
		return d
	}
	return cal.Next(d)
}
