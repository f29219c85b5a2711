package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bireader-backend/internal/models"
)

// Publisher delivers websocket messages to every open connection of a user.
type Publisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// RedisPublisher publishes on the user_updates:<userID> channel that the
// websocket hub subscribes to.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

func (p *RedisPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p == nil || p.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to encode %s update for user %s: %v", msg.Type, userID, err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		log.Printf("failed to publish %s update for user %s: %v", msg.Type, userID, err)
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishUpdate(context.Context, uuid.UUID, models.WSMessage) {}
