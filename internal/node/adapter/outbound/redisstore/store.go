package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "shard:records"

// Store appends records to a Redis list, which keeps insertion order.
type Store struct {
	client redis.UniversalClient
	key    string
}

// Ensure Store implements port.RecordRepository.
var _ port.RecordRepository = (*Store)(nil)

func New(client redis.UniversalClient, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Insert(ctx context.Context, record domain.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	items, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", s.key, err)
	}

	records := make([]domain.Record, 0, len(items))
	for i, item := range items {
		var r domain.Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			logger.Warnw("Skipping undecodable record", "key", s.key, "index", i, "error", err.Error())
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}
