package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "invoice:"

// Storage caches invoice statuses reported by the payment gateway
type Storage struct {
	redis *redis.Client
}

func NewStorage(client *redis.Client) *Storage {
	return &Storage{
		redis: client,
	}
}

// Get returns the cached status. ok is false on a cache miss.
func (s *Storage) Get(ctx context.Context, invoiceID string) (status string, ok bool, err error) {
	status, err = s.redis.Get(ctx, keyPrefix+invoiceID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func (s *Storage) Set(ctx context.Context, invoiceID string, status string, expiration time.Duration) error {
	return s.redis.Set(ctx, keyPrefix+invoiceID, status, expiration).Err()
}

func (s *Storage) Delete(ctx context.Context, invoiceID string) {
	s.redis.Del(ctx, keyPrefix+invoiceID)
}
