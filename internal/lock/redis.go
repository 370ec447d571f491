package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skytrack/internal/logger"
)

// ErrLockTimeout is returned when a Redis lock could not be taken before ctx expired.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder can block others. The lease is
	// not extended, so an operation holding the lock longer than TTL loses
	// exclusivity; keep it well above the slowest transaction.
	TTL time.Duration
	// Retry is the poll interval while waiting for a held lock.
	Retry  time.Duration
	Prefix string
	// Log receives release failures. Nil discards them.
	Log logger.Logger
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		TTL:    10 * time.Second,
		Retry:  25 * time.Millisecond,
		Prefix: "skytrack:lock:",
	}
}

// Redis is a Locker shared by every process pointed at the same Redis.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	log    logger.Logger
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisWithClient(client, cfg), nil
}

func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	def := DefaultRedisConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Redis{client: client, cfg: cfg, log: log}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.cfg.Prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.cfg.Retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, name, token, r.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrLockTimeout, ctx.Err())
			}
			return nil, err
		}
		if ok {
			return func() { r.release(name, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release deletes the key only while it still carries token. A zero result
// means the lease expired and another holder may have taken the key.
func (r *Redis) release(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, r.client, []string{name}, token).Int()
	switch {
	case err != nil:
		r.log.Warn("redis lock release failed", "key", name, "error", err)
	case n == 0:
		r.log.Warn("redis lock expired before release", "key", name, "ttl", r.cfg.TTL)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
