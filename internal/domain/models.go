package domain

import "time"

// MaxAnsweringOffset caps how much answering time a single test can
// contribute to the tie-break sum: one day minus one millisecond.
const MaxAnsweringOffset = 24*time.Hour - time.Millisecond

// CorrectAnswer records that a user solved a daily test.
type CorrectAnswer struct {
	UserID        string
	TestID        int
	AnsweringTime time.Time
	// Offset is the elapsed time between the test opening and the
	// submission, capped at MaxAnsweringOffset.
	Offset time.Duration
}

// NewCorrectAnswer builds a correct-answer event, clamping the offset into
// [0, MaxAnsweringOffset].
func NewCorrectAnswer(userID string, testID int, testStart, answeredAt time.Time) CorrectAnswer {
	offset := answeredAt.Sub(testStart)
	if offset < 0 {
		offset = 0
	}
	if offset > MaxAnsweringOffset {
		offset = MaxAnsweringOffset
	}
	return CorrectAnswer{
		UserID:        userID,
		TestID:        testID,
		AnsweringTime: answeredAt,
		Offset:        offset,
	}
}

// WrongAnswer records a failed attempt. Only its existence matters to
// scoring; the submitted text does not.
type WrongAnswer struct {
	UserID string
	TestID int
	Time   time.Time
}

// Result is the wide per-user row holding points and place for every
// period. A row is created the first time any period is saved for a user
// and updated in place afterwards; a place of zero means "unplaced".
type Result struct {
	UserID      string `json:"userId"`
	Week1Points int    `json:"week1Points"`
	Week1Place  int    `json:"week1Place,omitempty"`
	Week2Points int    `json:"week2Points"`
	Week2Place  int    `json:"week2Place,omitempty"`
	FinalPoints int    `json:"finalPoints"`
	FinalPlace  int    `json:"finalPlace,omitempty"`
}

// PointsFor returns the stored points for a period.
func (r *Result) PointsFor(p Period) (int, error) {
	switch p {
	case Week1:
		return r.Week1Points, nil
	case Week2:
		return r.Week2Points, nil
	case Final:
		return r.FinalPoints, nil
	default:
		return 0, ErrUnknownPeriod
	}
}

// PlaceFor returns the stored place for a period (0 = unplaced).
func (r *Result) PlaceFor(p Period) (int, error) {
	switch p {
	case Week1:
		return r.Week1Place, nil
	case Week2:
		return r.Week2Place, nil
	case Final:
		return r.FinalPlace, nil
	default:
		return 0, ErrUnknownPeriod
	}
}

// SetPoints overwrites the points column for a period.
func (r *Result) SetPoints(p Period, points int) error {
	switch p {
	case Week1:
		r.Week1Points = points
	case Week2:
		r.Week2Points = points
	case Final:
		r.FinalPoints = points
	default:
		return ErrUnknownPeriod
	}
	return nil
}

// SetPlace overwrites the place column for a period.
func (r *Result) SetPlace(p Period, place int) error {
	switch p {
	case Week1:
		r.Week1Place = place
	case Week2:
		r.Week2Place = place
	case Final:
		r.FinalPlace = place
	default:
		return ErrUnknownPeriod
	}
	return nil
}

// StandingsRow is one user's line in the standings for a single period.
type StandingsRow struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
	Place  int    `json:"place,omitempty"`
}

// Standings is the ordered scoreboard for one period, pivoted out of the
// wide result rows.
type Standings struct {
	Period    Period         `json:"period"`
	Rows      []StandingsRow `json:"rows"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
