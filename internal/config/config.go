package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"advent-ranking-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Competition struct {
		StartHour string `yaml:"start_hour"`
		EndHour   string `yaml:"end_hour"`
		Weeks     []struct {
			FirstDay string `yaml:"first_day"`
			LastDay  string `yaml:"last_day"`
		} `yaml:"weeks"`
	} `yaml:"competition"`
	Scoring struct {
		CorrectAnswerPoints int `yaml:"correct_answer_points"`
		BonusPoints         int `yaml:"bonus_points"`
		Workers             int `yaml:"workers"`
	} `yaml:"scoring"`
	Standings struct {
		TTL string `yaml:"ttl"`
	} `yaml:"standings"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Schedule builds the competition calendar from the configured week
// day-ranges and daily hours.
func (c Config) Schedule() (*domain.Schedule, error) {
	start, err := clockDuration(c.Competition.StartHour)
	if err != nil {
		return nil, fmt.Errorf("competition start_hour: %w", err)
	}
	end, err := clockDuration(c.Competition.EndHour)
	if err != nil {
		return nil, fmt.Errorf("competition end_hour: %w", err)
	}

	weeks := make([]domain.WeekSpec, 0, len(c.Competition.Weeks))
	for i, w := range c.Competition.Weeks {
		first, err := time.Parse("2006-01-02", w.FirstDay)
		if err != nil {
			return nil, fmt.Errorf("week %d first_day: %w", i+1, err)
		}
		last, err := time.Parse("2006-01-02", w.LastDay)
		if err != nil {
			return nil, fmt.Errorf("week %d last_day: %w", i+1, err)
		}
		weeks = append(weeks, domain.WeekSpec{FirstDay: first, LastDay: last})
	}
	return domain.NewSchedule(weeks, start, end)
}

// clockDuration converts a time-of-day string ("13:00:00" or "13:00") into
// an offset from midnight.
func clockDuration(raw string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%q is not a clock time", raw)
}
