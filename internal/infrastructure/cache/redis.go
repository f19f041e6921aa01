// Package cache opens the Redis client shared by the idempotency store and
// the notification transport.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int

	// zero means the client default
	PoolSize    int
	DialTimeout time.Duration
}

const pingTimeout = 5 * time.Second

// OpenRedis connects and pings once; the client is closed again if the ping
// fails.
func OpenRedis(ctx context.Context, o Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        o.Addr,
		Password:    o.Password,
		DB:          o.DB,
		PoolSize:    o.PoolSize,
		DialTimeout: o.DialTimeout,
	})
	if err := Ping(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", o.Addr, err)
	}
	return rdb, nil
}

// Ping bounds a PING by pingTimeout. It doubles as the health check.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
