package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "fintrack:ratelimit:"

// Redis is a fixed-window limiter shared by every API replica. Each client
// gets one counter per minute that expires with the window.
type Redis struct {
	client            redis.Cmdable
	prefix            string
	requestsPerMinute int
	now               func() time.Time
}

func NewRedis(client redis.Cmdable, config Config) *Redis {
	config = config.normalized()
	return &Redis{
		client:            client,
		prefix:            defaultKeyPrefix,
		requestsPerMinute: config.RequestsPerMinute,
		now:               time.Now,
	}
}

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, url string, config Config) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, config), client, nil
}

func (rl *Redis) key(client string) string {
	window := rl.now().Unix() / 60
	return rl.prefix + client + ":" + strconv.FormatInt(window, 10)
}

func (rl *Redis) Allow(ctx context.Context, client string) (bool, error) {
	key := rl.key(client)
	n, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		if err := rl.client.Expire(ctx, key, 2*time.Minute).Err(); err != nil {
			return true, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return n <= int64(rl.requestsPerMinute), nil
}
