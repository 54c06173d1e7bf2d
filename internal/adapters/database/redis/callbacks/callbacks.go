package callbacks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Storage keeps callback payloads that do not fit into the 64 byte Telegram callback data
// or should not travel through the client (emails, invoice ids).
type Storage struct {
	redis *redis.Client
}

func NewStorage(client *redis.Client) *Storage {
	return &Storage{
		redis: client,
	}
}

func (s *Storage) Get(ctx context.Context, callbackID string) (string, error) {
	return s.redis.Get(ctx, callbackID).Result()
}

// Set stores data at a random uuid key and returns the key.
func (s *Storage) Set(ctx context.Context, data string, expiration time.Duration) (string, error) {
	callbackID := uuid.New().String()
	if err := s.redis.Set(ctx, callbackID, data, expiration).Err(); err != nil {
		return "", err
	}
	return callbackID, nil
}

func (s *Storage) Delete(ctx context.Context, callbackID string) {
	s.redis.Del(ctx, callbackID)
}
