package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"advent-ranking-service/internal/app"
	"advent-ranking-service/internal/config"
	"advent-ranking-service/internal/domain"
	"advent-ranking-service/internal/infra/memory"
	pgrepo "advent-ranking-service/internal/infra/postgres"
	rediscache "advent-ranking-service/internal/infra/redis"
	transport "advent-ranking-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the ranking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	schedule, err := buildSchedule(cfg)
	if err != nil {
		return err
	}

	var repo app.ResultRepository
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = pgrepo.NewResultRepository(pool)
	} else {
		log.Printf("no postgres configured, using in-memory store with sample answers")
		repo = sampleRepository()
	}

	service := newResultService(cfg, repo, schedule)
	hub := app.NewStandingsHub()

	var provider transport.StandingsProvider = service
	var invalidator transport.Invalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache := rediscache.NewStandingsCache(client, service,
			config.TTLDuration(cfg.Standings.TTL, 10*time.Minute))
		provider = cache
		invalidator = cache
	}

	mux := http.NewServeMux()
	transport.NewHandler(provider, service, invalidator, hub).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(provider, hub).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting ranking service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildSchedule turns the configured calendar into scoring windows, falling
// back to a sample two-week December calendar when none is configured.
func buildSchedule(cfg config.Config) (*domain.Schedule, error) {
	if len(cfg.Competition.Weeks) == 0 {
		log.Printf("no competition calendar configured, using sample calendar")
		return sampleSchedule()
	}
	return cfg.Schedule()
}

func newResultService(cfg config.Config, repo app.ResultRepository, schedule *domain.Schedule) *app.ResultService {
	points := cfg.Scoring.CorrectAnswerPoints
	if points == 0 {
		points = app.DefaultCorrectAnswerPoints
	}
	bonus := cfg.Scoring.BonusPoints
	if bonus == 0 {
		bonus = app.DefaultBonusPoints
	}
	return app.NewResultService(repo, schedule,
		app.CorrectAnswerPointsRule{PointsPerAnswer: points},
		app.BonusPointsRule{BonusPerAnswer: bonus},
		cfg.Scoring.Workers,
	)
}

func sampleSchedule() (*domain.Schedule, error) {
	day := func(d int) time.Time {
		return time.Date(2024, time.December, d, 0, 0, 0, 0, time.UTC)
	}
	return domain.NewSchedule(
		[]domain.WeekSpec{
			{FirstDay: day(1), LastDay: day(7)},
			{FirstDay: day(8), LastDay: day(14)},
		},
		13*time.Hour,
		23*time.Hour+59*time.Minute+59*time.Second,
	)
}

// sampleRepository provides a minimal set of answer data; the postgres
// repository replaces it in production.
func sampleRepository() *memory.ResultRepository {
	repo := memory.NewResultRepository()
	start := time.Date(2024, time.December, 1, 13, 0, 0, 0, time.UTC)
	for _, id := range []string{"alice", "bob", "carol"} {
		repo.AddUser(id)
	}
	repo.AddCorrectAnswer(domain.NewCorrectAnswer("alice", 1, start, start.Add(30*time.Minute)))
	repo.AddCorrectAnswer(domain.NewCorrectAnswer("bob", 1, start, start.Add(2*time.Hour)))
	repo.AddWrongAnswer(domain.WrongAnswer{UserID: "carol", TestID: 1, Time: start.Add(time.Hour)})
	return repo
}
