//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tripcache/flight-search/pkg/flight"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
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

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestStore_Integration_PutGet(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := NewStore(redisClient)
	ctx := context.Background()
	rs := testResultSet(t)

	if err := store.Put(ctx, rs, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, rs.Criteria)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(rs) {
		t.Errorf("Get() = %+v, want %+v", got, rs)
	}
}

func TestStore_Integration_TTLExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := NewStore(redisClient)
	ctx := context.Background()
	rs := testResultSet(t)

	if err := store.Put(ctx, rs, time.Second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, rs.Criteria); err != ErrMiss {
		t.Errorf("Get() after TTL error = %v, want ErrMiss", err)
	}
}

func TestStore_Integration_Replace(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := NewStore(redisClient)
	ctx := context.Background()
	criteria := roundTrip()

	first := testResultSet(t)
	if err := store.Put(ctx, first, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second := flight.NewResultSet(criteria, first.Itineraries[:1])
	if err := store.Put(ctx, second, time.Minute); err != nil {
		t.Fatalf("Put() second error = %v", err)
	}

	got, err := store.Get(ctx, criteria)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(second) {
		t.Errorf("Get() should return the replacement set, got %d itineraries", len(got.Itineraries))
	}
}
