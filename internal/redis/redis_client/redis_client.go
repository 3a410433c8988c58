package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to the Redis instance that carries presence events
// and viewer counts. The relay only publishes and writes small hashes, so the
// pool stays modest.
func NewRedisClient(ctx context.Context, host string, port uint16) (*redis.Client, error) {
	poolSize := runtime.NumCPU() * 4
	if poolSize > 128 {
		poolSize = 128
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		err = fmt.Errorf("redis connection failed: %w", err)
		zap.L().Error("redis.connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
