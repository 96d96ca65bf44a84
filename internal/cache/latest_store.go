package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"plugmon/internal/models"
)

const latestKey = "plugmon:latest-reading"

// LatestStore caches the newest normalized reading for quick access.
type LatestStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatestStore returns a redis-backed store.
func NewLatestStore(client *redis.Client, ttl time.Duration) *LatestStore {
	return &LatestStore{client: client, ttl: ttl}
}

// Save caches the reading with the configured TTL.
func (s *LatestStore) Save(ctx context.Context, reading models.NormalizedReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, latestKey, data, s.ttl).Err()
}

// Get returns the cached reading, or redis.Nil when it has expired.
func (s *LatestStore) Get(ctx context.Context) (*models.NormalizedReading, error) {
	result, err := s.client.Get(ctx, latestKey).Result()
	if err != nil {
		return nil, err
	}
	var reading models.NormalizedReading
	if err := json.Unmarshal([]byte(result), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}
