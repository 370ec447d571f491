package lock

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skytrack/internal/logger"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Sync() error          { return nil }

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) With(...any) logger.Logger { return l }

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// newTestRedis runs only when SKYTRACK_TEST_REDIS_ADDR points at a scratch Redis.
// Every test gets its own key prefix so runs do not interfere.
func newTestRedis(t *testing.T, ttl time.Duration, log logger.Logger) (*Redis, *redis.Client) {
	t.Helper()
	addr := os.Getenv("SKYTRACK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SKYTRACK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	l := NewRedisWithClient(client, RedisConfig{
		TTL:    ttl,
		Retry:  5 * time.Millisecond,
		Prefix: fmt.Sprintf("skytrack:test:%s:", uuid.NewString()),
		Log:    log,
	})
	return l, client
}

func TestRedisSerializesSameKey(t *testing.T) {
	l, _ := newTestRedis(t, 5*time.Second, nil)
	var inside, maxInside, done int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			release, err := l.Lock(ctx, PlaneKey(1))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(10), done)
}

func TestRedisLockTimesOut(t *testing.T) {
	l, _ := newTestRedis(t, 5*time.Second, nil)
	release, err := l.Lock(context.Background(), PlaneKey(2))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, PlaneKey(2))
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other keys stay free
	other, err := l.Lock(context.Background(), PlaneKey(3))
	require.NoError(t, err)
	other()

	release()
	again, err := l.Lock(context.Background(), PlaneKey(2))
	require.NoError(t, err)
	again()
}

func TestRedisStaleReleaseKeepsNewHolder(t *testing.T) {
	rec := &recordingLogger{}
	l, client := newTestRedis(t, 100*time.Millisecond, rec)
	ctx := context.Background()
	name := l.cfg.Prefix + FlightKey(7)

	stale, err := l.Lock(ctx, FlightKey(7))
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	fresh, err := l.Lock(ctx, FlightKey(7))
	require.NoError(t, err)
	holder, err := client.Get(ctx, name).Result()
	require.NoError(t, err)

	stale()
	got, err := client.Get(ctx, name).Result()
	require.NoError(t, err, "stale release must not delete the new holder's key")
	assert.Equal(t, holder, got)
	assert.Contains(t, rec.warnings(), "redis lock expired before release")

	fresh()
	_, err = client.Get(ctx, name).Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisWorksWithAcquireAll(t *testing.T) {
	l, client := newTestRedis(t, 5*time.Second, nil)
	ctx := context.Background()
	release, err := AcquireAll(ctx, l, PlaneKey(4), FlightKey(4))
	require.NoError(t, err)
	n, err := client.Exists(ctx, l.cfg.Prefix+PlaneKey(4), l.cfg.Prefix+FlightKey(4)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	release()
	n, err = client.Exists(ctx, l.cfg.Prefix+PlaneKey(4), l.cfg.Prefix+FlightKey(4)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
