package syncstats

import (
	"context"
	"time"

	"chatrelay/internal/chat"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ViewersKey  = "chat:viewers"
	pipeTimeout = 1500 * time.Millisecond
)

// Source is anything that can report live room sizes.
type Source interface {
	Stats(ctx context.Context) []chat.RoomStats
}

// Every interval, mirror live connection counts per room -> Redis hash.
func Run(ctx context.Context, rdc *redis.Client, src Source, every, ttl time.Duration) {
	tk := time.NewTicker(every)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, rdc, src, ttl); err != nil {
					zap.L().Error("syncstats.pipeline", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, src Source, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	pairs := viewerPairs(src.Stats(ctx))

	// replace the whole hash atomically so evicted rooms disappear
	pipe := rdc.TxPipeline()
	pipe.Del(ctx, ViewersKey)
	if len(pairs) > 0 {
		pipe.HSet(ctx, ViewersKey, pairs...)
		pipe.Expire(ctx, ViewersKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// viewerPairs flattens stats into HSET field/value pairs, skipping rooms
// without connections.
func viewerPairs(stats []chat.RoomStats) []any {
	pairs := make([]any, 0, 2*len(stats))
	for _, st := range stats {
		if st.Connections == 0 {
			continue
		}
		pairs = append(pairs, st.ID, st.Connections)
	}
	return pairs
}
