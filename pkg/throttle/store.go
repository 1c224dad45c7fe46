package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists lag state per site.
type Store interface {
	// Load returns the stored state, or nil if none exists.
	Load(ctx context.Context, site string) (*LagState, error)

	// Save stores state until its lag window ends.
	Save(ctx context.Context, state *LagState) error
}

// MemoryStore keeps lag state in process.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]LagState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]LagState)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, site string) (*LagState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[site]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *LagState) error {
	if state == nil {
		return fmt.Errorf("lag state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Site] = *state
	return nil
}

// RedisStore shares lag state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store on top of redisClient.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Key returns the Redis key holding the state of site.
func Key(site string) string {
	return RedisKeyPrefix + site
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, site string) (*LagState, error) {
	data, err := r.redis.Get(ctx, Key(site)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state LagState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal lag state: %w", err)
	}
	return &state, nil
}

// Save implements Store. The key expires when the lag window closes.
func (r *RedisStore) Save(ctx context.Context, state *LagState) error {
	if state == nil {
		return fmt.Errorf("lag state cannot be nil")
	}
	ttl := state.Remaining()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal lag state: %w", err)
	}
	if err := r.redis.Set(ctx, Key(state.Site), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
