package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(q, a string) []model.Turn {
	return []model.Turn{
		{Role: model.RoleUser, Content: q},
		{Role: model.RoleAssistant, Content: a},
	}
}

// runStoreSuite checks behaviour shared by every Store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("Should start sessions empty", func(t *testing.T) {
		s := newStore(t)
		turns, err := s.History(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("Should append in order and keep sessions apart", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "a", exchange("q1", "a1")...))
		require.NoError(t, s.Append(ctx, "a", exchange("q2", "a2")...))
		require.NoError(t, s.Append(ctx, "b", exchange("other", "reply")...))

		turns, err := s.History(ctx, "a")
		require.NoError(t, err)
		require.Len(t, turns, 4)
		assert.Equal(t, "q1", turns[0].Content)
		assert.Equal(t, model.RoleUser, turns[0].Role)
		assert.Equal(t, "a2", turns[3].Content)
		assert.Equal(t, model.RoleAssistant, turns[3].Role)

		turns, err = s.History(ctx, "b")
		require.NoError(t, err)
		assert.Len(t, turns, 2)
	})

	t.Run("Should reset a session", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "a", exchange("q", "a")...))
		require.NoError(t, s.Reset(ctx, "a"))
		turns, err := s.History(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}

func TestLRUStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewLRUStore(100, time.Minute) })

	t.Run("Should expire idle sessions", func(t *testing.T) {
		s := NewLRUStore(10, 50*time.Millisecond)
		require.NoError(t, s.Append(context.Background(), "a", exchange("q", "a")...))
		time.Sleep(120 * time.Millisecond)
		turns, err := s.History(context.Background(), "a")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("Should evict the least recently used session", func(t *testing.T) {
		ctx := context.Background()
		s := NewLRUStore(2, time.Minute)
		require.NoError(t, s.Append(ctx, "a", exchange("q", "a")...))
		require.NoError(t, s.Append(ctx, "b", exchange("q", "a")...))
		require.NoError(t, s.Append(ctx, "c", exchange("q", "a")...))
		assert.Equal(t, 2, s.Len())
		turns, err := s.History(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("Should not expose internal state", func(t *testing.T) {
		ctx := context.Background()
		s := NewLRUStore(10, time.Minute)
		require.NoError(t, s.Append(ctx, "a", exchange("q", "a")...))
		turns, _ := s.History(ctx, "a")
		turns[0].Content = "mutated"
		again, _ := s.History(ctx, "a")
		assert.Equal(t, "q", again[0].Content)
	})

	t.Run("Should be safe for concurrent appends", func(t *testing.T) {
		ctx := context.Background()
		s := NewLRUStore(10, time.Minute)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Append(ctx, "shared", exchange(fmt.Sprint(i), "a")...)
			}(i)
		}
		wg.Wait()
		turns, err := s.History(ctx, "shared")
		require.NoError(t, err)
		assert.Len(t, turns, 100)
	})
}

func TestRedisStore(t *testing.T) {
	newStore := func(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStore(client, time.Minute), mr
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, _ := newStore(t)
		return s
	})

	t.Run("Should expire sessions after the ttl", func(t *testing.T) {
		ctx := context.Background()
		s, mr := newStore(t)
		require.NoError(t, s.Append(ctx, "a", exchange("q", "a")...))
		assert.Equal(t, time.Minute, mr.TTL(key("a")))

		mr.FastForward(2 * time.Minute)
		turns, err := s.History(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}

func TestWindow(t *testing.T) {
	turns := append(exchange("q1", "a1"), exchange("q2", "a2")...)
	assert.Len(t, Window(turns, 0), 4)
	assert.Len(t, Window(turns, 10), 4)
	w := Window(turns, 2)
	require.Len(t, w, 2)
	assert.Equal(t, "q2", w[0].Content)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	s, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &LRUStore{}, s)

	mr := miniredis.RunT(t)
	cfg.SessionStore = config.SessionRedis
	cfg.RedisAddr = mr.Addr()
	s, err = New(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, s)
	s.(*RedisStore).Close()

	cfg.SessionStore = "disk"
	_, err = New(ctx, cfg)
	require.Error(t, err)
}
