package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

func TestPublishTickWithoutRedisIsNoop(t *testing.T) {
	t.Parallel()
	s := NewPublishService(nil)

	err := s.PublishTick(context.Background(), models.Tick{
		Symbol:    "MOCK",
		Price:     100,
		Timestamp: time.Now(),
		Provider:  "mock",
	})
	require.NoError(t, err)
}

func TestPublishTickNilReceiver(t *testing.T) {
	t.Parallel()
	var s *PublishService
	require.NoError(t, s.PublishTick(context.Background(), models.Tick{Symbol: "MOCK"}))
}
