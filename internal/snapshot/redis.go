package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	appconfig "oiflow/config"
	"oiflow/internal/models"
)

// RedisStore keeps the snapshot under a single Redis key without expiry.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg appconfig.RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		key: cfg.Key,
	}
}

func (s *RedisStore) Load(ctx context.Context) (models.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis key %s: %w", s.key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot from redis: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, oi models.AggregatedOI) error {
	data, err := encode(oi)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
