package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"advent-ranking-service/internal/domain"
)

// ResultRepository is everything the ranking calculator needs from storage.
// Read queries take an absolute [from, to) window; writes address one
// period column of a user's wide result row and must upsert.
type ResultRepository interface {
	GetUserIDs(ctx context.Context) ([]string, error)
	// GetCorrectAnswerCount counts a user's distinct solved tests inside
	// the window. Repeat correct answers to the same test count once.
	GetCorrectAnswerCount(ctx context.Context, userID string, from, to time.Time) (int, error)
	// GetAnsweringTimeSum sums the capped answering offsets, in seconds,
	// of the first correct answer per test inside the window.
	GetAnsweringTimeSum(ctx context.Context, userID string, from, to time.Time) (int, error)
	// GetWrongAnswerCountsPerDay returns one count per competition day on
	// which the user answered wrongly inside the window.
	GetWrongAnswerCountsPerDay(ctx context.Context, userID string, from, to time.Time) ([]int, error)
	GetFinalResults(ctx context.Context) ([]domain.Result, error)

	SaveUserWeeklyScore(ctx context.Context, userID string, week, points int) error
	SaveUserWeeklyPlace(ctx context.Context, userID string, week, place int) error
	SaveUserFinalScore(ctx context.Context, userID string, points int) error
	SaveUserFinalPlace(ctx context.Context, userID string, place int) error
}

// PeriodScore is one user's aggregate for a single period. AnsweringTime is
// the tie-break sum in seconds and carries no points.
type PeriodScore struct {
	UserID        string
	Points        int
	AnsweringTime int
}

// UserFailure records a user whose result could not be persisted during a
// calculation run.
type UserFailure struct {
	UserID string
	Err    error
}

// Report summarizes one calculation run. Failed lists users whose rows
// could not be written; their scores were still computed and ranked.
type Report struct {
	Period domain.Period
	Saved  []string
	Failed []UserFailure
}

// ResultService scores users and computes ranked results per period.
type ResultService struct {
	repo     ResultRepository
	points   CorrectAnswerPointsRule
	bonus    BonusPointsRule
	tieBreak AnsweringTimePlaceRule
	schedule *domain.Schedule
	workers  int
}

// NewResultService wires the calculator. workers bounds the per-user scoring
// fan-out; values below 1 mean sequential.
func NewResultService(repo ResultRepository, schedule *domain.Schedule, points CorrectAnswerPointsRule, bonus BonusPointsRule, workers int) *ResultService {
	if workers < 1 {
		workers = 1
	}
	return &ResultService{
		repo:     repo,
		points:   points,
		bonus:    bonus,
		schedule: schedule,
		workers:  workers,
	}
}

// Score computes one user's points and tie-break time for a period. Users
// with no qualifying answers score zero; that is a valid outcome, not an
// error.
func (s *ResultService) Score(ctx context.Context, userID string, period domain.Period) (PeriodScore, error) {
	window, err := s.schedule.Resolve(period)
	if err != nil {
		return PeriodScore{}, err
	}
	return s.scoreWindow(ctx, userID, window)
}

func (s *ResultService) scoreWindow(ctx context.Context, userID string, w domain.Window) (PeriodScore, error) {
	correct, err := s.repo.GetCorrectAnswerCount(ctx, userID, w.From, w.To)
	if err != nil {
		return PeriodScore{}, fmt.Errorf("count correct answers for %s: %w", userID, err)
	}
	score := PeriodScore{UserID: userID}
	if correct == 0 {
		return score, nil
	}

	wrongPerDay, err := s.repo.GetWrongAnswerCountsPerDay(ctx, userID, w.From, w.To)
	if err != nil {
		return PeriodScore{}, fmt.Errorf("count wrong answers for %s: %w", userID, err)
	}
	timeSum, err := s.repo.GetAnsweringTimeSum(ctx, userID, w.From, w.To)
	if err != nil {
		return PeriodScore{}, fmt.Errorf("sum answering time for %s: %w", userID, err)
	}

	score.Points = s.points.Points(correct) + s.bonus.Points(correct, wrongPerDay)
	score.AnsweringTime = timeSum
	return score, nil
}

// CalculateWeeklyResults recomputes points and places for one week and
// persists them.
func (s *ResultService) CalculateWeeklyResults(ctx context.Context, week int) (Report, error) {
	period, err := domain.WeekPeriod(week)
	if err != nil {
		return Report{}, err
	}
	return s.calculate(ctx, period)
}

// CalculateFinalResults recomputes points and places across the whole
// competition and persists them.
func (s *ResultService) CalculateFinalResults(ctx context.Context) (Report, error) {
	return s.calculate(ctx, domain.Final)
}

func (s *ResultService) calculate(ctx context.Context, period domain.Period) (Report, error) {
	// A bad calendar fails the run before any user is touched.
	window, err := s.schedule.Resolve(period)
	if err != nil {
		return Report{}, err
	}

	userIDs, err := s.repo.GetUserIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}

	scores := make([]PeriodScore, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			score, err := s.scoreWindow(gctx, userID, window)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sortScores(scores, s.tieBreak)
	places := assignPlaces(scores, s.tieBreak)

	report := Report{Period: period}
	for i, score := range scores {
		if err := s.save(ctx, period, score, places[i]); err != nil {
			log.Printf("results: save %s for %s: %v", period, score.UserID, err)
			report.Failed = append(report.Failed, UserFailure{UserID: score.UserID, Err: err})
			continue
		}
		report.Saved = append(report.Saved, score.UserID)
	}
	return report, nil
}

func (s *ResultService) save(ctx context.Context, period domain.Period, score PeriodScore, place int) error {
	switch period {
	case domain.Week1, domain.Week2:
		week := period.WeekNumber()
		if err := s.repo.SaveUserWeeklyScore(ctx, score.UserID, week, score.Points); err != nil {
			return fmt.Errorf("save weekly score: %w", err)
		}
		if err := s.repo.SaveUserWeeklyPlace(ctx, score.UserID, week, place); err != nil {
			return fmt.Errorf("save weekly place: %w", err)
		}
	case domain.Final:
		if err := s.repo.SaveUserFinalScore(ctx, score.UserID, score.Points); err != nil {
			return fmt.Errorf("save final score: %w", err)
		}
		if err := s.repo.SaveUserFinalPlace(ctx, score.UserID, place); err != nil {
			return fmt.Errorf("save final place: %w", err)
		}
	default:
		return fmt.Errorf("%s: %w", period, domain.ErrUnknownPeriod)
	}
	return nil
}

// sortScores orders by points descending, answering time ascending, then
// user ID so the order is total.
func sortScores(scores []PeriodScore, tieBreak AnsweringTimePlaceRule) {
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.AnsweringTime != b.AnsweringTime {
			return tieBreak.Less(a, b)
		}
		return a.UserID < b.UserID
	})
}

// assignPlaces hands out dense 1-based places over scores sorted by
// sortScores. Users with identical points and answering time share a place;
// the next distinct pair gets the previous place plus one. Zero-point users
// stay unplaced (place 0).
func assignPlaces(scores []PeriodScore, tieBreak AnsweringTimePlaceRule) []int {
	places := make([]int, len(scores))
	place := 0
	for i, score := range scores {
		if score.Points == 0 {
			continue
		}
		if i > 0 && score.Points == scores[i-1].Points && score.AnsweringTime == scores[i-1].AnsweringTime {
			places[i] = places[i-1]
			continue
		}
		place++
		places[i] = place
	}
	return places
}

// Standings pivots the wide result rows into one period's scoreboard,
// sorted by place with unplaced users last.
func (s *ResultService) Standings(ctx context.Context, period domain.Period) (domain.Standings, error) {
	results, err := s.repo.GetFinalResults(ctx)
	if err != nil {
		return domain.Standings{}, fmt.Errorf("load results: %w", err)
	}

	rows := make([]domain.StandingsRow, 0, len(results))
	for i := range results {
		points, err := results[i].PointsFor(period)
		if err != nil {
			return domain.Standings{}, err
		}
		place, err := results[i].PlaceFor(period)
		if err != nil {
			return domain.Standings{}, err
		}
		rows = append(rows, domain.StandingsRow{
			UserID: results[i].UserID,
			Points: points,
			Place:  place,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Place == 0) != (b.Place == 0) {
			return b.Place == 0
		}
		if a.Place != b.Place {
			return a.Place < b.Place
		}
		return a.UserID < b.UserID
	})
	return domain.Standings{Period: period, Rows: rows, UpdatedAt: time.Now().UTC()}, nil
}
