package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/logging"
)

var ErrNotAcquired = errors.New("lock held elsewhere")

// Locker serialises work on one key across instances. Release must be called
// with the token returned by Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client *redis.Client
	prefix string
	wait   time.Duration
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func NewRedisLocker(redisURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		// Bare host:port, as accepted by the storage layer elsewhere.
		opts = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logging.Log.Infof("🔧 Redis lock store initialized with address: %s", opts.Addr)
	return &RedisLocker{client: client, prefix: "hotel:lock:", wait: 2 * time.Second}, nil
}

// Acquire retries until the lock is free, ctx ends, or the wait budget runs out.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// NoopLocker is used when no redis is configured; row locks in the database
// remain the only serialisation.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (string, error) { return "", nil }

func (NoopLocker) Release(context.Context, string, string) error { return nil }
