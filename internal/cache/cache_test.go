package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "/dashboard/invoices", Key("/dashboard/invoices", ""))
	assert.Equal(t, "/dashboard/invoices?page=2", Key("/dashboard/invoices", "page=2"))
}

func TestPageCache_PurgeDropsQueryVariants(t *testing.T) {
	pc := NewPageCache(time.Minute)
	pc.Set("/dashboard/invoices", []byte("list"))
	pc.Set("/dashboard/invoices?page=2", []byte("page 2"))
	pc.Set("/dashboard/invoices/create", []byte("form"))
	pc.Set("/dashboard", []byte("home"))

	require.NoError(t, pc.Revalidate(context.Background(), "/dashboard/invoices"))

	_, ok := pc.Get("/dashboard/invoices")
	assert.False(t, ok)
	_, ok = pc.Get("/dashboard/invoices?page=2")
	assert.False(t, ok)

	body, ok := pc.Get("/dashboard/invoices/create")
	assert.True(t, ok)
	assert.Equal(t, "form", string(body))
	assert.Equal(t, 2, pc.Len())
}

func TestPageCache_SetIfCurrentDropsPurgedRender(t *testing.T) {
	pc := NewPageCache(time.Minute)
	const path = "/dashboard/invoices"

	gen := pc.Generation(path)
	pc.Purge(path)
	assert.False(t, pc.SetIfCurrent(path, path+"?lang=en", gen, []byte("stale")))
	_, ok := pc.Get(path + "?lang=en")
	assert.False(t, ok)

	gen = pc.Generation(path)
	assert.True(t, pc.SetIfCurrent(path, path+"?lang=en", gen, []byte("fresh")))
	body, ok := pc.Get(path + "?lang=en")
	require.True(t, ok)
	assert.Equal(t, "fresh", string(body))

	// Other paths keep their own generation.
	other := pc.Generation("/dashboard/customers")
	pc.Purge(path)
	assert.True(t, pc.SetIfCurrent("/dashboard/customers", "/dashboard/customers", other, []byte("c")))
}

func TestPageCache_DefaultTTL(t *testing.T) {
	pc := NewPageCache(0)
	pc.Set("/x", []byte("y"))
	body, ok := pc.Get("/x")
	require.True(t, ok)
	assert.Equal(t, "y", string(body))
}

func newOfflineClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRevalidator_HandleIgnoresOwnMessages(t *testing.T) {
	pc := NewPageCache(time.Minute)
	r := NewRedisRevalidator(newOfflineClient(t), pc, WithChannel("test"))

	pc.Set("/dashboard/invoices", []byte("list"))
	own, _ := json.Marshal(RevalidateMessage{Path: "/dashboard/invoices", Origin: r.origin})
	r.handle(string(own))
	assert.Equal(t, 1, pc.Len())

	remote, _ := json.Marshal(RevalidateMessage{Path: "/dashboard/invoices", Origin: "other"})
	r.handle(string(remote))
	assert.Equal(t, 0, pc.Len())

	r.handle("not json")
	assert.Equal(t, "test", r.channel)
}

func TestRedisRevalidator_PublishFailureStillPurgesLocally(t *testing.T) {
	pc := NewPageCache(time.Minute)
	r := NewRedisRevalidator(newOfflineClient(t), pc)
	pc.Set("/dashboard/invoices", []byte("list"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := r.Revalidate(ctx, "/dashboard/invoices")
	assert.Error(t, err)
	assert.Equal(t, 0, pc.Len())
}

func TestRedisRevalidator_ListenRetriesUntilCancelled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRedisRevalidator(newOfflineClient(t), NewPageCache(time.Minute),
		WithLogger(zap.New(core)),
		WithRetryDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Listen(ctx) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Revalidation subscription failed, retrying").Len() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.EqualError(t, r.Listen(context.Background()), "revalidation listener already running")

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("Listen did not return after the context ended")
	}

	// The listener can be started again once the previous run returned.
	stopped, stop := context.WithCancel(context.Background())
	stop()
	assert.ErrorIs(t, r.Listen(stopped), context.Canceled)
}

func TestRedisRevalidator_ConsumePurgesRemotePaths(t *testing.T) {
	pc := NewPageCache(time.Minute)
	r := NewRedisRevalidator(newOfflineClient(t), pc)
	pc.Set("/dashboard/invoices", []byte("list"))
	pc.Set("/dashboard/invoices?page=2", []byte("page 2"))

	remote, _ := json.Marshal(RevalidateMessage{Path: "/dashboard/invoices", Origin: "other"})
	ch := make(chan *redis.Message, 1)
	ch <- &redis.Message{Channel: DefaultChannel, Payload: string(remote)}
	close(ch)

	err := r.consume(context.Background(), ch)
	assert.ErrorIs(t, err, errChannelClosed)
	assert.Equal(t, 0, pc.Len())
}
