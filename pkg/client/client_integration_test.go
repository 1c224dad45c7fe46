//go:build integration

package client

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/mwapi-client/internal/testutil"
	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/throttle"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_SharedLagWindow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Enqueue(
		testutil.NewMaxLagResponse(8),
		testutil.NewJSONResponse(`{"query":{}}`),
	)

	store := throttle.NewRedisStore(redisClient)
	configure := func(cfg *Config) {
		cfg.LagStore = store
	}

	first, firstSleeps := newTestClient(t, mock.URL(), configure)
	second, secondSleeps := newTestClient(t, mock.URL(), configure)

	ctx := context.Background()

	// The first client sees the maxlag error and records the lag window.
	if _, err := first.Execute(ctx, mustRequest(t, first, request.NewParams("action", "query"), false)); err != nil {
		t.Fatalf("first Execute() failed: %v", err)
	}
	if delays := firstSleeps.recorded(); len(delays) != 1 || delays[0] != 8*time.Second {
		t.Errorf("first client sleeps = %v, want [8s]", delays)
	}

	// The second client holds back before its first request.
	if _, err := second.Execute(ctx, mustRequest(t, second, request.NewParams("action", "query"), false)); err != nil {
		t.Fatalf("second Execute() failed: %v", err)
	}
	delays := secondSleeps.recorded()
	if len(delays) != 1 {
		t.Fatalf("second client sleeps = %v, want one lag gate wait", delays)
	}
	if delays[0] <= 0 || delays[0] > 8*time.Second {
		t.Errorf("second client wait = %v, want within (0, 8s]", delays[0])
	}

	state, err := second.LagState(ctx)
	if err != nil {
		t.Fatalf("LagState() failed: %v", err)
	}
	if state == nil || state.Lag != 8*time.Second {
		t.Errorf("LagState = %+v, want lag 8s", state)
	}

	if mock.RequestCount() != 3 {
		t.Errorf("Request count = %d, want 3", mock.RequestCount())
	}
}

func TestIntegration_LegacyQueryFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Enqueue(
		testutil.NewJSONResponse(`{"query":{"allpages":[{"title":"A"},{"title":"B"}]},"query-continue":{"allpages":{"apcontinue":"C"}}}`),
		testutil.NewMaxLagResponse(2),
		testutil.NewJSONResponse(`{"query":{"allpages":[{"title":"C"}]}}`),
	)

	c, sleeper := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.LagStore = throttle.NewRedisStore(redisClient)
	})

	res, err := c.Query(context.Background(), mustRequest(t, c, request.NewParams("action", "query", "list", "allpages"), false))
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}

	query, _ := res.Get("query")
	pages := query.(map[string]any)["allpages"].([]any)
	if len(pages) != 3 {
		t.Errorf("allpages = %v, want 3 entries", pages)
	}

	// One maxlag sleep inside the continuation request.
	if delays := sleeper.recorded(); len(delays) != 1 || delays[0] != 2*time.Second {
		t.Errorf("Sleeps = %v, want [2s]", delays)
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("Request count = %d, want 3", len(reqs))
	}
	if reqs[1].Form.Get("apcontinue") != "C" || reqs[2].Form.Get("apcontinue") != "C" {
		t.Error("Expected the continuation request to be replayed after maxlag")
	}
}
