package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"advent-ranking-service/internal/domain"
)

// StandingsLoader computes standings from the result store on a cache miss.
type StandingsLoader interface {
	Standings(ctx context.Context, period domain.Period) (domain.Standings, error)
}

// StandingsCache keeps per-period standings in Redis as JSON blobs:
// SET standings:{period} {json} EX {ttl}. A calculation run invalidates the
// affected keys so readers see fresh places on the next request.
type StandingsCache struct {
	client *redis.Client
	loader StandingsLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewStandingsCache(client *redis.Client, loader StandingsLoader, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StandingsCache) Standings(ctx context.Context, period domain.Period) (domain.Standings, error) {
	key := standingsKey(period)

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var s domain.Standings
		if err := json.Unmarshal(cached, &s); err == nil {
			return s, nil
		}
		// Unreadable entry: drop it and fall through to the loader.
		_ = c.client.Del(ctx, key).Err()
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var s domain.Standings
			if err := json.Unmarshal(cached, &s); err == nil {
				return s, nil
			}
		}

		s, err := c.loader.Standings(ctx, period)
		if err != nil {
			return domain.Standings{}, err
		}

		if payload, err := json.Marshal(s); err == nil {
			_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		}
		return s, nil
	})
	if err != nil {
		return domain.Standings{}, err
	}
	return result.(domain.Standings), nil
}

// Invalidate drops the cached standings for the given periods.
func (c *StandingsCache) Invalidate(ctx context.Context, periods ...domain.Period) error {
	keys := make([]string, 0, len(periods))
	for _, p := range periods {
		keys = append(keys, standingsKey(p))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func standingsKey(period domain.Period) string {
	return "standings:" + period.String()
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
