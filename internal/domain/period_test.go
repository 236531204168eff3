package domain

import (
	"errors"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, time.December, d, 0, 0, 0, 0, time.UTC)
}

func testSchedule(t *testing.T) *Schedule {
	t.Helper()
	s, err := NewSchedule(
		[]WeekSpec{
			{FirstDay: day(1), LastDay: day(7)},
			{FirstDay: day(8), LastDay: day(14)},
		},
		13*time.Hour,
		23*time.Hour+59*time.Minute+59*time.Second,
	)
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	return s
}

func TestWeekPeriod(t *testing.T) {
	for week, want := range map[int]Period{1: Week1, 2: Week2} {
		got, err := WeekPeriod(week)
		if err != nil {
			t.Fatalf("week %d: %v", week, err)
		}
		if got != want {
			t.Fatalf("week %d: got %s, want %s", week, got, want)
		}
	}
	if _, err := WeekPeriod(3); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("week 3: got %v, want ErrUnknownPeriod", err)
	}
}

func TestParsePeriodRoundTrip(t *testing.T) {
	for _, p := range []Period{Week1, Week2, Final} {
		parsed, err := ParsePeriod(p.String())
		if err != nil {
			t.Fatalf("parse %q: %v", p.String(), err)
		}
		if parsed != p {
			t.Fatalf("parse %q: got %s", p.String(), parsed)
		}
	}
	if _, err := ParsePeriod("week3"); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("parse week3: got %v, want ErrUnknownPeriod", err)
	}
}

func TestWindowContainsHalfOpen(t *testing.T) {
	w := Window{From: day(1).Add(13 * time.Hour), To: day(7).Add(23 * time.Hour)}

	if !w.Contains(w.From) {
		t.Fatal("From must be inside the window")
	}
	if w.Contains(w.To) {
		t.Fatal("To must be outside the window")
	}
	if w.Contains(w.From.Add(-time.Nanosecond)) {
		t.Fatal("instant before From must be outside")
	}
	if !w.Contains(w.To.Add(-time.Nanosecond)) {
		t.Fatal("instant before To must be inside")
	}
}

func TestScheduleResolve(t *testing.T) {
	s := testSchedule(t)

	week1, err := s.Resolve(Week1)
	if err != nil {
		t.Fatalf("resolve week1: %v", err)
	}
	if !week1.From.Equal(day(1).Add(13 * time.Hour)) {
		t.Fatalf("week1 from = %s", week1.From)
	}
	if !week1.To.Equal(day(7).Add(23*time.Hour + 59*time.Minute + 59*time.Second)) {
		t.Fatalf("week1 to = %s", week1.To)
	}

	week2, err := s.Resolve(Week2)
	if err != nil {
		t.Fatalf("resolve week2: %v", err)
	}
	final, err := s.Resolve(Final)
	if err != nil {
		t.Fatalf("resolve final: %v", err)
	}
	if !final.From.Equal(week1.From) || !final.To.Equal(week2.To) {
		t.Fatalf("final window %v..%v must span week1 start to week2 end", final.From, final.To)
	}

	if _, err := s.Resolve(Period(9)); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("resolve unknown: got %v, want ErrUnknownPeriod", err)
	}
}

func TestNewScheduleRejectsBadCalendars(t *testing.T) {
	hours := 13 * time.Hour
	end := 23 * time.Hour
	week := WeekSpec{FirstDay: day(1), LastDay: day(7)}

	cases := []struct {
		name  string
		weeks []WeekSpec
		start time.Duration
		end   time.Duration
	}{
		{"one week", []WeekSpec{week}, hours, end},
		{"three weeks", []WeekSpec{week, week, week}, hours, end},
		{"negative start hour", []WeekSpec{week, {FirstDay: day(8), LastDay: day(14)}}, -time.Hour, end},
		{"end hour past midnight", []WeekSpec{week, {FirstDay: day(8), LastDay: day(14)}}, hours, 25 * time.Hour},
		{"week ends before start", []WeekSpec{{FirstDay: day(7), LastDay: day(1)}, {FirstDay: day(8), LastDay: day(14)}}, hours, end},
		{"overlapping weeks", []WeekSpec{{FirstDay: day(1), LastDay: day(8)}, {FirstDay: day(8), LastDay: day(14)}}, hours, end},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSchedule(tc.weeks, tc.start, tc.end); !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("got %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestNewCorrectAnswerCapsOffset(t *testing.T) {
	start := day(1).Add(13 * time.Hour)

	early := NewCorrectAnswer("u1", 1, start, start.Add(-time.Hour))
	if early.Offset != 0 {
		t.Fatalf("pre-start answer offset = %s, want 0", early.Offset)
	}

	late := NewCorrectAnswer("u1", 1, start, start.Add(72*time.Hour))
	if late.Offset != MaxAnsweringOffset {
		t.Fatalf("late answer offset = %s, want cap %s", late.Offset, MaxAnsweringOffset)
	}

	normal := NewCorrectAnswer("u1", 1, start, start.Add(90*time.Minute))
	if normal.Offset != 90*time.Minute {
		t.Fatalf("offset = %s, want 90m", normal.Offset)
	}
}
