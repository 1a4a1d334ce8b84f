package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// redisClient is the part of *goredis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Close() error
}

// Redis is a Cache shared across worker processes.
type Redis struct {
	rdb    redisClient
	prefix string
}

// NewRedis connects to the server at url (redis://host:port/db) and pings it.
func NewRedis(url string) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	return &Redis{rdb: rdb, prefix: "signal:"}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
	return eris.Wrapf(err, "cache: redis set %s", key)
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	err := r.rdb.Del(ctx, r.prefix+key).Err()
	return eris.Wrapf(err, "cache: redis del %s", key)
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
