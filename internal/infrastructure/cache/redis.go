package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"skillexchange/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
	}

	log.Printf("[Redis] connected addr=%s", client.Options().Addr)
	return client, nil
}
