package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tabKeyPrefix = "loginflow:tab:"

// Redis stores tokens in Redis so several service instances can share tabs.
// Each key expires after ttl; a zero ttl keeps keys until deleted.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis parses url, connects and pings the server.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func tabKey(tab string) string { return tabKeyPrefix + tab }

func (r *Redis) Load(ctx context.Context, tab string) (string, bool, error) {
	token, err := r.client.Get(ctx, tabKey(tab)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: redis get: %w", err)
	}
	return token, true, nil
}

func (r *Redis) Save(ctx context.Context, tab, token string) error {
	if err := r.client.Set(ctx, tabKey(tab), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, tab string) error {
	if err := r.client.Del(ctx, tabKey(tab)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
