package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vsinha/cims/pkg/domain/services"
	"go.uber.org/zap"
)

// ErrNotObtained is returned when a lock is still held after every retry
var ErrNotObtained = errors.New("lock not obtained")

// ErrLockLost is returned on release when the lock expired and was taken by someone else
var ErrLockLost = errors.New("lock no longer held")

const keyPrefix = "cims:lock:"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements services.Locker with SET NX PX on a shared Redis
type RedisLocker struct {
	client     redis.UniversalClient
	logger     *zap.Logger
	retryCount int
	retryDelay time.Duration
	jitter     time.Duration
}

// RedisOption configures a RedisLocker
type RedisOption func(*RedisLocker)

// WithRetry sets how many extra attempts are made and the delay between them
func WithRetry(count int, delay time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.retryCount = count
		l.retryDelay = delay
	}
}

// NewRedisLocker creates a locker on client. Defaults: 3 retries, 200ms apart, up to 200ms jitter.
func NewRedisLocker(client redis.UniversalClient, logger *zap.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		logger:     logger,
		retryCount: 3,
		retryDelay: 200 * time.Millisecond,
		jitter:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ services.Locker = (*RedisLocker)(nil)

// Obtain sets key if absent, retrying while another holder has it
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (services.Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := keyPrefix + key

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to set lock %s: %w", key, err)
		}
		if ok {
			return &redisLock{client: l.client, key: redisKey, token: token}, nil
		}
		if attempt >= l.retryCount {
			l.logger.Warn("lock busy", zap.String("key", key), zap.Int("attempts", attempt+1))
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		}

		timer := time.NewTimer(l.retryDelay + l.randomJitter())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) randomJitter() time.Duration {
	if l.jitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(l.jitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (k *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", k.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, k.key)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
