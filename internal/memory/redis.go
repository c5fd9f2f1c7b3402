package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agrochat:session:"

// RedisStore keeps each session as a redis list of JSON turns. Every append
// refreshes the key TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	raw, err := s.client.LRange(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: read session %s: %w", sessionID, err)
	}
	turns := make([]model.Turn, 0, len(raw))
	for _, r := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("memory: decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("memory: encode turn: %w", err)
		}
		values = append(values, b)
	}
	k := key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, k, values...)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("memory: append session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("memory: reset session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
