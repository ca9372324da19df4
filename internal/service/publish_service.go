package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/stockrhythm/gatewayapi/internal/models"
)

// RedisTickChannel is the Redis channel ticks are mirrored to for external
// consumers.
var RedisTickChannel = "CH:GATEWAY:TICKS"

// PublishService mirrors session ticks to a Redis channel. A nil Redis
// client disables publishing.
type PublishService struct {
	redisClient *redis.Client
}

// NewPublishService creates a new PublishService. redisClient may be nil.
func NewPublishService(redisClient *redis.Client) *PublishService {
	return &PublishService{redisClient: redisClient}
}

// PublishTick publishes one tick to the Redis channel. Failures never
// interrupt the session; the caller may log the returned error.
func (s *PublishService) PublishTick(ctx context.Context, tick models.Tick) error {
	if s == nil || s.redisClient == nil {
		return nil
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		return err
	}

	return s.redisClient.Publish(ctx, RedisTickChannel, payload).Err()
}
