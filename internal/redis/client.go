package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Key layout shared by everything stored in Redis.
const (
	PlaybackChannel  = "soundboard:events"
	SessionKeyPrefix = "soundboard:session:"
	SessionIndex     = "soundboard:sessions:expiry"
	authLimitPrefix  = "soundboard:ratelimit:auth:"
)

func SessionKey(id string) string {
	return SessionKeyPrefix + id
}

func AuthRateLimitKey(ip string) string {
	return fmt.Sprintf("%s%s", authLimitPrefix, ip)
}
