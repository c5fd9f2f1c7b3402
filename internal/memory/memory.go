// Package memory keeps per-session conversation history.
package memory

import (
	"context"
	"fmt"

	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/redis/go-redis/v9"
)

// Store holds the turns of each session. Appends for one call are applied
// together; History returns a copy the caller may modify.
type Store interface {
	History(ctx context.Context, sessionID string) ([]model.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...model.Turn) error
	Reset(ctx context.Context, sessionID string) error
}

// Window returns the last n turns. n <= 0 keeps everything.
func Window(turns []model.Turn, n int) []model.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// New builds the store selected by cfg.SessionStore.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.SessionMemory:
		return NewLRUStore(cfg.MaxSessions, cfg.SessionTTL), nil
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("memory: connect redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("memory: session store %q is not supported", cfg.SessionStore)
	}
}
