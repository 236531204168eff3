package domain

import (
	"fmt"
	"time"
)

// Period identifies a scoring window: one of the competition weeks or the
// whole competition.
type Period int

const (
	Week1 Period = iota + 1
	Week2
	Final
)

// WeekPeriod maps a 1-based week number onto its period.
func WeekPeriod(week int) (Period, error) {
	switch week {
	case 1:
		return Week1, nil
	case 2:
		return Week2, nil
	default:
		return 0, fmt.Errorf("week %d: %w", week, ErrUnknownPeriod)
	}
}

// ParsePeriod parses the wire form used by the standings API.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "week1":
		return Week1, nil
	case "week2":
		return Week2, nil
	case "final":
		return Final, nil
	default:
		return 0, fmt.Errorf("period %q: %w", s, ErrUnknownPeriod)
	}
}

func (p Period) String() string {
	switch p {
	case Week1:
		return "week1"
	case Week2:
		return "week2"
	case Final:
		return "final"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// WeekNumber returns the 1-based week number, or 0 for Final.
func (p Period) WeekNumber() int {
	switch p {
	case Week1:
		return 1
	case Week2:
		return 2
	default:
		return 0
	}
}

// MarshalText lets periods appear as their wire form in JSON payloads.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the wire form back into a period.
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Window is a half-open [From, To) time interval.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// WeekSpec names the calendar days one competition week covers. FirstDay
// and LastDay are date-only values (midnight, any zone); the daily hours
// come from the schedule.
type WeekSpec struct {
	FirstDay time.Time
	LastDay  time.Time
}

// Schedule resolves periods to absolute windows. It is built once from
// configuration and performs no I/O; scoring code never consults global
// state for hours.
type Schedule struct {
	weeks []Window
}

// NewSchedule builds the schedule for a two-week competition. startHour is
// the time of day the ranking window opens on a week's first day, endHour
// the time of day it closes on the last day. Each week's window is
// [firstDay+startHour, lastDay+endHour).
func NewSchedule(weeks []WeekSpec, startHour, endHour time.Duration) (*Schedule, error) {
	if len(weeks) != 2 {
		return nil, fmt.Errorf("need exactly 2 weeks, got %d: %w", len(weeks), ErrInvalidSchedule)
	}
	if startHour < 0 || startHour >= 24*time.Hour {
		return nil, fmt.Errorf("start hour %s out of range: %w", startHour, ErrInvalidSchedule)
	}
	if endHour <= 0 || endHour > 24*time.Hour {
		return nil, fmt.Errorf("end hour %s out of range: %w", endHour, ErrInvalidSchedule)
	}

	windows := make([]Window, 0, len(weeks))
	for i, week := range weeks {
		if week.LastDay.Before(week.FirstDay) {
			return nil, fmt.Errorf("week %d ends before it starts: %w", i+1, ErrInvalidSchedule)
		}
		w := Window{
			From: week.FirstDay.Add(startHour),
			To:   week.LastDay.Add(endHour),
		}
		if !w.From.Before(w.To) {
			return nil, fmt.Errorf("week %d window is empty: %w", i+1, ErrInvalidSchedule)
		}
		if i > 0 && w.From.Before(windows[i-1].To) {
			return nil, fmt.Errorf("week %d overlaps week %d: %w", i+1, i, ErrInvalidSchedule)
		}
		windows = append(windows, w)
	}
	return &Schedule{weeks: windows}, nil
}

// Resolve returns the absolute window for a period. Final spans the whole
// competition, from the first week's opening to the last week's close.
func (s *Schedule) Resolve(p Period) (Window, error) {
	switch p {
	case Week1:
		return s.weeks[0], nil
	case Week2:
		return s.weeks[1], nil
	case Final:
		return Window{From: s.weeks[0].From, To: s.weeks[len(s.weeks)-1].To}, nil
	default:
		return Window{}, fmt.Errorf("%s: %w", p, ErrUnknownPeriod)
	}
}
