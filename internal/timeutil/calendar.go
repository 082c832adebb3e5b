package timeutil

import (
	"strings"
	"time"
)

// Calendar decides where logical days and weeks begin. A day starting at
// 04:00 puts 02:30 on Tuesday into Monday.
type Calendar struct {
	DayStartHour int
	WeekStart    time.Weekday
	Location     *time.Location
}

// DefaultCalendar starts days at 04:00 and weeks on Monday, in local time.
func DefaultCalendar() Calendar {
	return Calendar{DayStartHour: 4, WeekStart: time.Monday, Location: time.Local}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Calendar) StartOfDay(t time.Time) time.Time {
	lt := t.In(c.loc())
	b := time.Date(lt.Year(), lt.Month(), lt.Day(), c.DayStartHour, 0, 0, 0, c.loc())
	if lt.Before(b) {
		b = time.Date(lt.Year(), lt.Month(), lt.Day()-1, c.DayStartHour, 0, 0, 0, c.loc())
	}
	return b
}

func (c Calendar) StartOfWeek(t time.Time) time.Time {
	d := c.StartOfDay(t)
	for d.Weekday() != c.WeekStart {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Day is the logical day containing t.
func (c Calendar) Day(t time.Time) Span {
	s := c.StartOfDay(t)
	return Span{Start: s, End: s.AddDate(0, 0, 1)}
}

// Week is the logical week containing t.
func (c Calendar) Week(t time.Time) Span {
	s := c.StartOfWeek(t)
	return Span{Start: s, End: s.AddDate(0, 0, 7)}
}

// Days splits the week containing t into its seven logical days.
func (c Calendar) Days(t time.Time) []Span {
	start := c.StartOfWeek(t)
	days := make([]Span, 7)
	for i := range days {
		s := start.AddDate(0, 0, i)
		days[i] = Span{Start: s, End: s.AddDate(0, 0, 1)}
	}
	return days
}

// ParseWeekday accepts english weekday names, case-insensitively, and
// falls back to Monday.
func ParseWeekday(s string) time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) || strings.EqualFold(d.String()[:3], s) {
			return d
		}
	}
	return time.Monday
}
