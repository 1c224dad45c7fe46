package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	state, err := store.Load(ctx, "site")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Fatalf("Load() = %+v, want nil", state)
	}

	now := time.Now()
	want := &LagState{Site: "site", Lag: 10 * time.Second, Until: now.Add(10 * time.Second), ObservedAt: now}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "site")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() = nil after Save")
	}
	if got.Lag != want.Lag {
		t.Errorf("Lag = %v, want %v", got.Lag, want.Lag)
	}
	if !got.Until.Equal(want.Until) {
		t.Errorf("Until = %v, want %v", got.Until, want.Until)
	}

	ttl, err := client.TTL(ctx, Key("site")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Errorf("TTL = %v, want (0, 10s]", ttl)
	}
}

func TestRedisStore_ExpiredStateNotSaved(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if err := store.Save(ctx, &LagState{Site: "site", Until: past, ObservedAt: past}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if n, _ := client.Exists(ctx, Key("site")).Result(); n != 0 {
		t.Error("expired lag state should not be stored")
	}
}
