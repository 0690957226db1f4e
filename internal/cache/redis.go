package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultChannel is the pub/sub channel carrying revalidation messages.
	DefaultChannel = "invoices:revalidate"
	// DefaultRetryDelay is the wait between subscription attempts.
	DefaultRetryDelay = 2 * time.Second
)

var errChannelClosed = errors.New("revalidation channel closed")

// RevalidateMessage is published for every revalidated path.
type RevalidateMessage struct {
	Path      string `json:"path"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// RedisRevalidator purges the local page cache and fans the path out to
// other server instances over Redis pub/sub.
type RedisRevalidator struct {
	client     *redis.Client
	local      *PageCache
	channel    string
	origin     string
	logger     *zap.Logger
	retryDelay time.Duration

	mu      sync.Mutex
	running bool
}

// RedisOption configures a RedisRevalidator.
type RedisOption func(*RedisRevalidator)

// WithChannel sets the pub/sub channel name.
func WithChannel(channel string) RedisOption {
	return func(r *RedisRevalidator) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RedisOption {
	return func(r *RedisRevalidator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetryDelay sets the wait between subscription attempts.
func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *RedisRevalidator) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

// NewRedisRevalidator wraps local with Redis fan-out. The caller keeps
// ownership of client.
func NewRedisRevalidator(client *redis.Client, local *PageCache, opts ...RedisOption) *RedisRevalidator {
	r := &RedisRevalidator{
		client:  client,
		local:   local,
		channel:    DefaultChannel,
		origin:     uuid.NewString(),
		logger:     zap.NewNop(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revalidate purges path locally, then publishes it. A publish failure is
// returned; the local purge has already happened.
func (r *RedisRevalidator) Revalidate(ctx context.Context, path string) error {
	r.local.Purge(path)

	data, err := json.Marshal(RevalidateMessage{Path: path, Origin: r.origin, Timestamp: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("marshal revalidate message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish revalidation",
			zap.String("channel", r.channel),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("publish revalidate %s: %w", path, err)
	}
	return nil
}

// Listen purges paths published by other instances until ctx is done.
// A failed or dropped subscription is retried after the retry delay.
// It blocks; run it in its own goroutine.
func (r *RedisRevalidator) Listen(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("revalidation listener already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("Revalidation subscription failed, retrying",
			zap.String("channel", r.channel),
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", r.retryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

// subscribe holds one subscription until it drops or ctx is done.
func (r *RedisRevalidator) subscribe(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("Subscribed to revalidation channel", zap.String("channel", r.channel))
	return r.consume(ctx, pubsub.Channel())
}

func (r *RedisRevalidator) consume(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errChannelClosed
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRevalidator) handle(payload string) {
	var m RevalidateMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.logger.Error("Failed to decode revalidation message",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if m.Origin == r.origin || m.Path == "" {
		return
	}
	n := r.local.Purge(m.Path)
	r.logger.Debug("Purged pages from remote revalidation",
		zap.String("path", m.Path),
		zap.Int("entries", n))
}
