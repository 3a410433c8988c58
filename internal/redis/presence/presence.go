// Package presence publishes room join/leave events to Redis so that other
// services can follow who is in which room.
package presence

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"chatrelay/internal/chat"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 1500 * time.Millisecond

// Channel is the pub/sub channel for a room's presence events.
func Channel(room string) string {
	return "chat:" + room + ":presence"
}

// Publisher is a chat.Observer. Room loops hand events over without waiting
// on Redis; a single worker started with Run does the publishing.
type Publisher struct {
	rdc     *redis.Client
	events  chan chat.PresenceEvent
	dropped atomic.Int64
}

var _ chat.Observer = (*Publisher)(nil)

func NewPublisher(rdc *redis.Client, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{rdc: rdc, events: make(chan chat.PresenceEvent, buffer)}
}

// ObservePresence never blocks. Events that do not fit the buffer are dropped.
func (p *Publisher) ObservePresence(ev chat.PresenceEvent) {
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
		zap.L().Debug("presence.dropped", zap.String("room", ev.Room), zap.String("kind", ev.Kind))
	}
}

func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run publishes until ctx is cancelled, then flushes what is still buffered.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case ev := <-p.events:
			p.publish(ctx, ev)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case ev := <-p.events:
			p.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev chat.PresenceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("presence.encode", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdc.Publish(ctx, Channel(ev.Room), string(payload)).Err(); err != nil {
		zap.L().Warn("presence.publish", zap.String("room", ev.Room), zap.Error(err))
	}
}
