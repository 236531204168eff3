package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"advent-ranking-service/internal/app"
	"advent-ranking-service/internal/domain"
	pgrepo "advent-ranking-service/internal/infra/postgres"
	pgmigrations "advent-ranking-service/internal/infra/postgres/migrations"
	infraredis "advent-ranking-service/internal/infra/redis"
)

func day(d int) time.Time {
	return time.Date(2024, time.December, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateResultsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	repo := pgrepo.NewResultRepository(pool)
	seedAnswers(t, ctx, repo)

	schedule, err := domain.NewSchedule(
		[]domain.WeekSpec{
			{FirstDay: day(1), LastDay: day(7)},
			{FirstDay: day(8), LastDay: day(14)},
		},
		13*time.Hour,
		23*time.Hour+59*time.Minute+59*time.Second,
	)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	service := app.NewResultService(repo, schedule,
		app.CorrectAnswerPointsRule{PointsPerAnswer: app.DefaultCorrectAnswerPoints},
		app.BonusPointsRule{BonusPerAnswer: app.DefaultBonusPoints},
		4,
	)

	report, err := service.CalculateWeeklyResults(ctx, 1)
	if err != nil {
		t.Fatalf("calculate week 1: %v", err)
	}
	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", report.Failed)
	}
	if len(report.Saved) != 4 {
		t.Fatalf("saved %d users, want 4", len(report.Saved))
	}
	if _, err := service.CalculateFinalResults(ctx); err != nil {
		t.Fatalf("calculate final: %v", err)
	}

	results, err := repo.GetFinalResults(ctx)
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	byUser := make(map[string]domain.Result, len(results))
	for _, r := range results {
		byUser[r.UserID] = r
	}

	// dave: two clean solves, fastest. cara: same points, slower. bob: one
	// solve plus a wrong day, no bonus. erin: wrong answers only, unplaced.
	checks := []struct {
		userID        string
		points, place int
	}{
		{"dave", 260, 1},
		{"cara", 260, 2},
		{"bob", 100, 3},
		{"erin", 0, 0},
	}
	for _, c := range checks {
		row, ok := byUser[c.userID]
		if !ok {
			t.Fatalf("no row for %s", c.userID)
		}
		if row.Week1Points != c.points || row.Week1Place != c.place {
			t.Fatalf("%s week1 = %d pts place %d, want %d pts place %d",
				c.userID, row.Week1Points, row.Week1Place, c.points, c.place)
		}
		if row.FinalPoints != c.points || row.FinalPlace != c.place {
			t.Fatalf("%s final = %d pts place %d, want %d pts place %d",
				c.userID, row.FinalPoints, row.FinalPlace, c.points, c.place)
		}
	}

	// Recomputation overwrites in place.
	if _, err := service.CalculateWeeklyResults(ctx, 1); err != nil {
		t.Fatalf("recalculate week 1: %v", err)
	}
	again, err := repo.GetFinalResults(ctx)
	if err != nil {
		t.Fatalf("reload results: %v", err)
	}
	if len(again) != len(results) {
		t.Fatalf("row count changed on recomputation: %d -> %d", len(results), len(again))
	}

	// Standings through the redis cache.
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewStandingsCache(redisClient, service, 5*time.Minute)
	standings, err := cache.Standings(ctx, domain.Week1)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings.Rows) != 4 || standings.Rows[0].UserID != "dave" {
		t.Fatalf("standings = %+v, want dave leading", standings.Rows)
	}
	cached, err := cache.Standings(ctx, domain.Week1)
	if err != nil {
		t.Fatalf("cached standings: %v", err)
	}
	if len(cached.Rows) != 4 {
		t.Fatalf("cached rows = %d, want 4", len(cached.Rows))
	}
}

func seedAnswers(t *testing.T, ctx context.Context, repo *pgrepo.ResultRepository) {
	t.Helper()
	for _, id := range []string{"bob", "cara", "dave", "erin"} {
		if err := repo.AddUser(ctx, id); err != nil {
			t.Fatalf("add user %s: %v", id, err)
		}
	}

	correct := func(userID string, testID int, offset time.Duration) {
		start := day(testID).Add(13 * time.Hour)
		a := domain.NewCorrectAnswer(userID, testID, start, start.Add(offset))
		if err := repo.AddCorrectAnswer(ctx, a); err != nil {
			t.Fatalf("add correct answer: %v", err)
		}
	}
	wrong := func(userID string, testID int, offset time.Duration) {
		at := day(testID).Add(13 * time.Hour).Add(offset)
		if err := repo.AddWrongAnswer(ctx, domain.WrongAnswer{UserID: userID, TestID: testID, Time: at}); err != nil {
			t.Fatalf("add wrong answer: %v", err)
		}
	}

	correct("dave", 1, time.Hour)
	correct("dave", 2, time.Hour)
	correct("cara", 1, 2*time.Hour)
	correct("cara", 2, 2*time.Hour)
	correct("bob", 1, 30*time.Minute)
	correct("bob", 1, 3*time.Hour) // duplicate solve, must count once
	wrong("bob", 2, time.Hour)
	wrong("erin", 1, time.Hour)
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "ranking", "POSTGRES_PASSWORD": "rankingpass", "POSTGRES_DB": "rankingdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://ranking:rankingpass@%s:%s/rankingdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
