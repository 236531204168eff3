package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"advent-ranking-service/internal/domain"
)

// ResultRepository reads answer events and writes wide result rows in
// Postgres. Window parameters always form a half-open [from, to) interval.
type ResultRepository struct {
	pool *pgxpool.Pool
}

func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func (r *ResultRepository) GetUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ResultRepository) GetCorrectAnswerCount(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT test_id)
		FROM correct_answers
		WHERE user_id = $1 AND answering_time >= $2 AND answering_time < $3`,
		userID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count correct answers: %w", err)
	}
	return count, nil
}

func (r *ResultRepository) GetAnsweringTimeSum(ctx context.Context, userID string, from, to time.Time) (int, error) {
	// Only the first correct answer per test contributes.
	var sum int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(offset_seconds), 0)
		FROM (
			SELECT DISTINCT ON (test_id) offset_seconds
			FROM correct_answers
			WHERE user_id = $1 AND answering_time >= $2 AND answering_time < $3
			ORDER BY test_id, answering_time
		) firsts`,
		userID, from, to).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum answering time: %w", err)
	}
	return sum, nil
}

func (r *ResultRepository) GetWrongAnswerCountsPerDay(ctx context.Context, userID string, from, to time.Time) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COUNT(*)
		FROM wrong_answers
		WHERE user_id = $1 AND answered_at >= $2 AND answered_at < $3
		GROUP BY date_trunc('day', answered_at)`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count wrong answers: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan wrong-answer count: %w", err)
		}
		counts = append(counts, n)
	}
	return counts, rows.Err()
}

func (r *ResultRepository) GetFinalResults(ctx context.Context) ([]domain.Result, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, week1_points, week1_place, week2_points, week2_place, final_points, final_place
		FROM results
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var res domain.Result
		if err := rows.Scan(&res.UserID,
			&res.Week1Points, &res.Week1Place,
			&res.Week2Points, &res.Week2Place,
			&res.FinalPoints, &res.FinalPlace); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// One upsert statement per column keeps identifiers out of string building.
const (
	saveWeek1PointsSQL = `
		INSERT INTO results (user_id, week1_points, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET week1_points = EXCLUDED.week1_points, updated_at = now()`
	saveWeek1PlaceSQL = `
		INSERT INTO results (user_id, week1_place, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET week1_place = EXCLUDED.week1_place, updated_at = now()`
	saveWeek2PointsSQL = `
		INSERT INTO results (user_id, week2_points, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET week2_points = EXCLUDED.week2_points, updated_at = now()`
	saveWeek2PlaceSQL = `
		INSERT INTO results (user_id, week2_place, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET week2_place = EXCLUDED.week2_place, updated_at = now()`
	saveFinalPointsSQL = `
		INSERT INTO results (user_id, final_points, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET final_points = EXCLUDED.final_points, updated_at = now()`
	saveFinalPlaceSQL = `
		INSERT INTO results (user_id, final_place, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET final_place = EXCLUDED.final_place, updated_at = now()`
)

func (r *ResultRepository) SaveUserWeeklyScore(ctx context.Context, userID string, week, points int) error {
	var query string
	switch week {
	case 1:
		query = saveWeek1PointsSQL
	case 2:
		query = saveWeek2PointsSQL
	default:
		return fmt.Errorf("week %d: %w", week, domain.ErrUnknownPeriod)
	}
	if _, err := r.pool.Exec(ctx, query, userID, points); err != nil {
		return fmt.Errorf("save week %d score: %w", week, err)
	}
	return nil
}

func (r *ResultRepository) SaveUserWeeklyPlace(ctx context.Context, userID string, week, place int) error {
	var query string
	switch week {
	case 1:
		query = saveWeek1PlaceSQL
	case 2:
		query = saveWeek2PlaceSQL
	default:
		return fmt.Errorf("week %d: %w", week, domain.ErrUnknownPeriod)
	}
	if _, err := r.pool.Exec(ctx, query, userID, place); err != nil {
		return fmt.Errorf("save week %d place: %w", week, err)
	}
	return nil
}

func (r *ResultRepository) SaveUserFinalScore(ctx context.Context, userID string, points int) error {
	if _, err := r.pool.Exec(ctx, saveFinalPointsSQL, userID, points); err != nil {
		return fmt.Errorf("save final score: %w", err)
	}
	return nil
}

func (r *ResultRepository) SaveUserFinalPlace(ctx context.Context, userID string, place int) error {
	if _, err := r.pool.Exec(ctx, saveFinalPlaceSQL, userID, place); err != nil {
		return fmt.Errorf("save final place: %w", err)
	}
	return nil
}

// AddUser registers a competitor; repeated adds are no-ops.
func (r *ResultRepository) AddUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// AddCorrectAnswer records a solved test with its capped answering offset.
func (r *ResultRepository) AddCorrectAnswer(ctx context.Context, a domain.CorrectAnswer) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO correct_answers (user_id, test_id, answering_time, offset_seconds)
		VALUES ($1, $2, $3, $4)`,
		a.UserID, a.TestID, a.AnsweringTime, int(a.Offset/time.Second)); err != nil {
		return fmt.Errorf("add correct answer: %w", err)
	}
	return nil
}

// AddWrongAnswer records a failed attempt.
func (r *ResultRepository) AddWrongAnswer(ctx context.Context, a domain.WrongAnswer) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO wrong_answers (user_id, test_id, answered_at)
		VALUES ($1, $2, $3)`,
		a.UserID, a.TestID, a.Time); err != nil {
		return fmt.Errorf("add wrong answer: %w", err)
	}
	return nil
}
