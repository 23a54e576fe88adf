package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisLocker_ObtainAndRelease(t *testing.T) {
	ctx := context.Background()
	s, client := newTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop(), WithRetry(0, 0))

	l, err := locker.Obtain(ctx, "codegen:CEM-2026", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, s.Exists(keyPrefix+"codegen:CEM-2026"))

	_, err = locker.Obtain(ctx, "codegen:CEM-2026", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, l.Release(ctx))
	assert.False(t, s.Exists(keyPrefix+"codegen:CEM-2026"))

	l, err = locker.Obtain(ctx, "codegen:CEM-2026", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx))
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	s, client := newTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop(), WithRetry(0, 0))

	first, err := locker.Obtain(ctx, "stock:m1", time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	second, err := locker.Obtain(ctx, "stock:m1", time.Second)
	require.NoError(t, err)

	err = first.Release(ctx)
	assert.ErrorIs(t, err, ErrLockLost)
	assert.True(t, s.Exists(keyPrefix+"stock:m1"), "second holder's lock must survive")

	require.NoError(t, second.Release(ctx))
}

func TestRedisLocker_RetriesUntilFree(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop(), WithRetry(10, 20*time.Millisecond))

	held, err := locker.Obtain(ctx, "codegen:PO-2026", 5*time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = held.Release(ctx)
	}()

	l, err := locker.Obtain(ctx, "codegen:PO-2026", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx))
}

func TestRedisLocker_UnavailableServer(t *testing.T) {
	s, client := newTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop())
	s.Close()

	_, err := locker.Obtain(context.Background(), "codegen:GRN-2026", time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotObtained))
}

func TestConnect(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+s.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := locker.Obtain(context.Background(), "stock:m1", time.Second)
			if err != nil {
				t.Errorf("Obtain failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = l.Release(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.keys, "released keys are forgotten")
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()
	held, err := locker.Obtain(context.Background(), "k", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release(context.Background()))
	require.NoError(t, held.Release(context.Background()), "release is idempotent")
}
