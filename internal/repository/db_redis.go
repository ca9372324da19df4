package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockrhythm/gatewayapi/internal/config"
)

// ConnectRedis connects to Redis when an address is configured. A nil client
// is returned when Redis is disabled; callers treat nil as "no cache".
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	// Check Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return redisClient, nil
}
