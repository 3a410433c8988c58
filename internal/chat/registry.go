package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configure every room a Registry creates.
type Options struct {
	HistorySize      int
	MaxMessageLength int // in runes, 0 disables the check
	Observer         Observer
	Moderator        Moderator
	Now              func() time.Time
}

// Registry maps room identifiers to live rooms. Rooms are created on first
// use and removed as soon as their last member leaves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	opts  Options
}

func NewRegistry(opts Options) *Registry {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 500
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Moderator == nil {
		opts.Moderator = AllowAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// getOrCreate returns the live room for id, creating it if needed.
// Concurrent callers always get the same instance. A room is only evicted by
// its last member leaving, so callers must join it or release it; Join does.
func (g *Registry) getOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := newRoom(id, g.opts, g.remove)
	g.rooms[id] = r
	zap.L().Debug("chat.room_created", zap.String("room", id))
	return r
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Join resolves the room and joins m to it. A room that emptied and stopped
// between lookup and join is replaced by a fresh one.
func (g *Registry) Join(ctx context.Context, id string, m Member) (*Room, []string, error) {
	if err := ValidateRoomID(id); err != nil {
		return nil, nil, err
	}
	for {
		r := g.getOrCreate(id)
		snapshot, err := r.Join(ctx, m)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrAlreadyJoined) {
				r.releaseIfEmpty()
			}
			return nil, nil, err
		}
		return r, snapshot, nil
	}
}

// remove runs on the room's own loop once it is empty. A newer room
// registered under the same id is left alone.
func (g *Registry) remove(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.rooms[r.id]; ok && cur == r {
		delete(g.rooms, r.id)
		zap.L().Debug("chat.room_evicted", zap.String("room", r.id))
	}
}

func (g *Registry) snapshot() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.id, b.id) })
	return rooms
}

// Stats reports every live room ordered by id. Rooms that close while
// being inspected are skipped.
func (g *Registry) Stats(ctx context.Context) []RoomStats {
	rooms := g.snapshot()
	out := make([]RoomStats, 0, len(rooms))
	for _, r := range rooms {
		st, err := r.Stats(ctx)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

func (g *Registry) RoomStats(ctx context.Context, id string) (RoomStats, bool) {
	r, ok := g.Get(id)
	if !ok {
		return RoomStats{}, false
	}
	st, err := r.Stats(ctx)
	if err != nil {
		return RoomStats{}, false
	}
	return st, true
}

// History returns up to limit recent messages of a live room, newest first,
// annotated with their grouping positions.
func (g *Registry) History(ctx context.Context, id string, limit int) ([]PositionedMessage, bool) {
	r, ok := g.Get(id)
	if !ok {
		return nil, false
	}
	msgs, err := r.Messages(ctx, limit)
	if err != nil {
		return nil, false
	}
	return WithPositions(msgs), true
}

// Shutdown closes every connection of every room.
func (g *Registry) Shutdown(ctx context.Context) {
	for _, r := range g.snapshot() {
		if err := r.shutdown(ctx, "server shutting down"); err != nil && !errors.Is(err, ErrRoomClosed) {
			zap.L().Warn("chat.room_shutdown", zap.String("room", r.id), zap.Error(err))
		}
	}
}
