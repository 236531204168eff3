package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"advent-ranking-service/internal/app"
	"advent-ranking-service/internal/config"
	pgrepo "advent-ranking-service/internal/infra/postgres"
	rediscache "advent-ranking-service/internal/infra/redis"
)

// NewCalculateCmd builds the one-shot recomputation subcommand.
func NewCalculateCmd(configPath *string) *cobra.Command {
	var week int
	var final bool

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Recompute and persist results for one period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if final == (week != 0) {
				return fmt.Errorf("pass exactly one of --week or --final")
			}
			return runCalculate(cmd.Context(), *configPath, week, final)
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "week number to recalculate")
	cmd.Flags().BoolVar(&final, "final", false, "recalculate the final results")
	return cmd
}

func runCalculate(ctx context.Context, configPath string, week int, final bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	schedule, err := cfg.Schedule()
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	service := newResultService(cfg, pgrepo.NewResultRepository(pool), schedule)

	var report app.Report
	if final {
		report, err = service.CalculateFinalResults(ctx)
	} else {
		report, err = service.CalculateWeeklyResults(ctx, week)
	}
	if err != nil {
		return err
	}

	log.Printf("calculated %s: %d saved, %d failed", report.Period, len(report.Saved), len(report.Failed))
	for _, f := range report.Failed {
		log.Printf("calculate: %s not saved: %v", f.UserID, f.Err)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache := rediscache.NewStandingsCache(client, service,
			config.TTLDuration(cfg.Standings.TTL, 10*time.Minute))
		if err := cache.Invalidate(ctx, report.Period); err != nil {
			log.Printf("calculate: invalidate %s: %v", report.Period, err)
		}
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d users not saved", len(report.Failed), len(report.Saved)+len(report.Failed))
	}
	return nil
}
