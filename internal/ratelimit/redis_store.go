package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "portal-ratelimit||"

// RedisStore keeps fixed-window counters in redis, sharing them across
// service instances. INCR is atomic and the key TTL is the window, so no
// locking is needed anywhere.
type RedisStore struct {
	redisClient *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redisClient: redisClient}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := redisKeyPrefix + key

	count, err := s.redisClient.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", redisKey, err)
	}

	if count == 1 {
		if err := s.redisClient.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("pexpire %s: %w", redisKey, err)
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := s.redisClient.PTTL(ctx, redisKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("pttl %s: %w", redisKey, err)
	}
	if ttl < 0 {
		// counter exists without an expiry (e.g. a lost PEXPIRE); heal it
		if err := s.redisClient.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("pexpire %s: %w", redisKey, err)
		}
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}
