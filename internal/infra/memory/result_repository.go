package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"advent-ranking-service/internal/domain"
)

// ResultRepository keeps answers and result rows in process memory. It
// implements the same query laws as the postgres repository (window
// filtering, first-correct-per-test dedupe, upsert by user) and backs the
// unit tests and the demo mode.
type ResultRepository struct {
	mu      sync.RWMutex
	users   []string
	userSet map[string]struct{}
	correct []domain.CorrectAnswer
	wrong   []domain.WrongAnswer
	results map[string]*domain.Result
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{
		userSet: make(map[string]struct{}),
		results: make(map[string]*domain.Result),
	}
}

// AddUser registers a competitor. Adding the same ID twice is a no-op.
func (r *ResultRepository) AddUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.userSet[userID]; ok {
		return
	}
	r.userSet[userID] = struct{}{}
	r.users = append(r.users, userID)
}

// AddCorrectAnswer records a solved test. The caller is expected to have
// built the event with domain.NewCorrectAnswer so the offset is capped.
func (r *ResultRepository) AddCorrectAnswer(a domain.CorrectAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correct = append(r.correct, a)
}

// AddWrongAnswer records a failed attempt.
func (r *ResultRepository) AddWrongAnswer(a domain.WrongAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrong = append(r.wrong, a)
}

func (r *ResultRepository) GetUserIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.users))
	copy(ids, r.users)
	sort.Strings(ids)
	return ids, nil
}

// firstCorrectPerTest returns, for each test the user solved inside the
// window, the earliest qualifying correct answer.
func (r *ResultRepository) firstCorrectPerTest(userID string, from, to time.Time) map[int]domain.CorrectAnswer {
	window := domain.Window{From: from, To: to}
	first := make(map[int]domain.CorrectAnswer)
	for _, a := range r.correct {
		if a.UserID != userID || !window.Contains(a.AnsweringTime) {
			continue
		}
		if prev, ok := first[a.TestID]; !ok || a.AnsweringTime.Before(prev.AnsweringTime) {
			first[a.TestID] = a
		}
	}
	return first
}

func (r *ResultRepository) GetCorrectAnswerCount(_ context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.firstCorrectPerTest(userID, from, to)), nil
}

func (r *ResultRepository) GetAnsweringTimeSum(_ context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum time.Duration
	for _, a := range r.firstCorrectPerTest(userID, from, to) {
		sum += a.Offset
	}
	return int(sum / time.Second), nil
}

func (r *ResultRepository) GetWrongAnswerCountsPerDay(_ context.Context, userID string, from, to time.Time) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	window := domain.Window{From: from, To: to}
	perDay := make(map[string]int)
	for _, a := range r.wrong {
		if a.UserID != userID || !window.Contains(a.Time) {
			continue
		}
		perDay[a.Time.UTC().Format("2006-01-02")]++
	}
	counts := make([]int, 0, len(perDay))
	for _, n := range perDay {
		counts = append(counts, n)
	}
	return counts, nil
}

func (r *ResultRepository) GetFinalResults(_ context.Context) ([]domain.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	results := make([]domain.Result, 0, len(r.results))
	for _, row := range r.results {
		results = append(results, *row)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UserID < results[j].UserID })
	return results, nil
}

// row returns the user's result row, creating it on first touch. Callers
// must hold the write lock.
func (r *ResultRepository) row(userID string) *domain.Result {
	if row, ok := r.results[userID]; ok {
		return row
	}
	row := &domain.Result{UserID: userID}
	r.results[userID] = row
	return row
}

func (r *ResultRepository) SaveUserWeeklyScore(_ context.Context, userID string, week, points int) error {
	period, err := domain.WeekPeriod(week)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.row(userID).SetPoints(period, points)
}

func (r *ResultRepository) SaveUserWeeklyPlace(_ context.Context, userID string, week, place int) error {
	period, err := domain.WeekPeriod(week)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.row(userID).SetPlace(period, place)
}

func (r *ResultRepository) SaveUserFinalScore(_ context.Context, userID string, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.row(userID).SetPoints(domain.Final, points)
}

func (r *ResultRepository) SaveUserFinalPlace(_ context.Context, userID string, place int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.row(userID).SetPlace(domain.Final, place)
}
