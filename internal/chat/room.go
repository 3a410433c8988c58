package chat

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"chatrelay/internal/protocol"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// RoomStats is a point-in-time view of a room.
type RoomStats struct {
	ID          string   `json:"id"`
	Members     []string `json:"members"`
	Connections int      `json:"connections"`
	Messages    int      `json:"messages"`
}

// Room is the broadcast domain of one stream's chat. All membership and
// message mutations run on a single goroutine, so every member observes
// join, leave and msg frames in commit order.
type Room struct {
	id      string
	opts    Options
	ops     chan func()
	done    chan struct{}
	onEmpty func(*Room)

	// owned by run()
	members []Member
	byID    map[string]Member
	names   map[string]int // display name -> open connections
	store   *MessageStore
	entropy *ulid.MonotonicEntropy
	lastMS  uint64
	closing bool
}

func newRoom(id string, opts Options, onEmpty func(*Room)) *Room {
	r := &Room{
		id:      id,
		opts:    opts,
		ops:     make(chan func()),
		done:    make(chan struct{}),
		onEmpty: onEmpty,
		byID:    make(map[string]Member),
		names:   make(map[string]int),
		store:   NewMessageStore(opts.HistorySize),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	go r.run()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed once the room has been evicted and its loop has stopped.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	defer close(r.done)
	for op := range r.ops {
		op()
		if r.closing {
			return
		}
	}
}

// exec runs op on the room loop and waits for it. It fails with
// ErrRoomClosed once the loop has stopped.
func (r *Room) exec(ctx context.Context, op func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		op()
	}
	select {
	case r.ops <- wrapped:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Join adds m to the room. The new member receives the connect snapshot,
// everyone else a join frame. The returned snapshot is sorted.
func (r *Room) Join(ctx context.Context, m Member) ([]string, error) {
	var (
		snapshot []string
		joinErr  error
	)
	err := r.exec(ctx, func() {
		if _, ok := r.byID[m.ID()]; ok {
			joinErr = ErrAlreadyJoined
			return
		}
		name := m.DisplayName()
		r.members = append(r.members, m)
		r.byID[m.ID()] = m
		r.names[name]++
		snapshot = r.memberNames()

		if frame, err := protocol.EncodeConnect(snapshot); err == nil {
			r.deliver(m, frame)
		} else {
			zap.L().Error("chat.encode_connect", zap.String("room", r.id), zap.Error(err))
		}
		if r.names[name] == 1 {
			r.broadcastEvent(protocol.EncodeJoin, name, m)
		}
		r.observe("join", name)
	})
	if err != nil {
		return nil, err
	}
	if joinErr != nil {
		return nil, joinErr
	}
	return snapshot, nil
}

// Leave removes m. Leaving twice, or leaving a room that already closed, is
// a no-op. When the last member leaves the room evicts itself.
func (r *Room) Leave(m Member) {
	_ = r.exec(context.Background(), func() {
		if _, ok := r.byID[m.ID()]; !ok {
			return
		}
		delete(r.byID, m.ID())
		r.members = slices.DeleteFunc(r.members, func(x Member) bool { return x.ID() == m.ID() })

		name := m.DisplayName()
		r.names[name]--
		if r.names[name] <= 0 {
			delete(r.names, name)
			r.broadcastEvent(protocol.EncodeLeave, name, nil)
		}
		r.observe("leave", name)

		if len(r.members) == 0 {
			r.stop()
		}
	})
}

// Post validates and commits a message, then broadcasts it to every member,
// the sender included.
func (r *Room) Post(ctx context.Context, m Member, content, replyTo string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if limit := r.opts.MaxMessageLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		return Message{}, ErrMessageTooLong
	}
	if err := r.opts.Moderator.Review(ctx, Submission{
		Room:          r.id,
		Author:        m.DisplayName(),
		Authenticated: m.Authenticated(),
		Content:       content,
		ReplyTo:       replyTo,
	}); err != nil {
		return Message{}, err
	}

	var (
		msg     Message
		postErr error
	)
	err := r.exec(ctx, func() {
		if _, ok := r.byID[m.ID()]; !ok {
			postErr = ErrNotMember
			return
		}
		now := r.opts.Now().UTC()
		id, err := r.nextID(now)
		if err != nil {
			postErr = fmt.Errorf("assign message id: %w", err)
			return
		}
		msg = Message{
			ID:        id,
			Author:    m.DisplayName(),
			Content:   content,
			Timestamp: now,
			ReplyTo:   replyTo,
		}
		if replyTo != "" {
			if _, ok := r.store.Lookup(replyTo); !ok {
				zap.L().Debug("chat.reply_unresolved",
					zap.String("room", r.id), zap.String("reply_to", replyTo))
			}
		}
		r.store.Append(msg)

		frame, err := protocol.EncodeMsg(msg.Wire())
		if err != nil {
			zap.L().Error("chat.encode_msg", zap.String("room", r.id), zap.Error(err))
			return
		}
		for _, member := range r.members {
			r.deliver(member, frame)
		}
	})
	if err != nil {
		return Message{}, err
	}
	if postErr != nil {
		return Message{}, postErr
	}
	return msg, nil
}

// SnapshotMembers returns the distinct display names currently joined,
// sorted ascending.
func (r *Room) SnapshotMembers(ctx context.Context) ([]string, error) {
	var names []string
	err := r.exec(ctx, func() { names = r.memberNames() })
	return names, err
}

// Resolve looks up a reply target. A dangling reference is reported as
// ok == false, not as an error.
func (r *Room) Resolve(ctx context.Context, id string) (msg Message, ok bool, err error) {
	err = r.exec(ctx, func() { msg, ok = r.store.Lookup(id) })
	return msg, ok, err
}

// Messages returns up to limit recent messages, newest first.
func (r *Room) Messages(ctx context.Context, limit int) ([]Message, error) {
	var out []Message
	err := r.exec(ctx, func() { out = r.store.Recent(limit) })
	return out, err
}

func (r *Room) Stats(ctx context.Context) (RoomStats, error) {
	var st RoomStats
	err := r.exec(ctx, func() {
		st = RoomStats{
			ID:          r.id,
			Members:     r.memberNames(),
			Connections: len(r.members),
			Messages:    r.store.Len(),
		}
	})
	return st, err
}

// shutdown closes every member. Rooms without members stop right away; the
// others stop when the last closed connection leaves.
func (r *Room) shutdown(ctx context.Context, reason string) error {
	return r.exec(ctx, func() {
		if len(r.members) == 0 {
			r.stop()
			return
		}
		for _, m := range r.members {
			go closeMember(m, reason)
		}
	})
}

// releaseIfEmpty stops a room nobody managed to join.
func (r *Room) releaseIfEmpty() {
	_ = r.exec(context.Background(), func() {
		if len(r.members) == 0 {
			r.stop()
		}
	})
}

func (r *Room) stop() {
	r.closing = true
	if r.onEmpty != nil {
		r.onEmpty(r)
	}
}

func (r *Room) nextID(now time.Time) (string, error) {
	ms := ulid.Timestamp(now)
	if ms < r.lastMS {
		ms = r.lastMS
	}
	r.lastMS = ms
	id, err := ulid.New(ms, r.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *Room) memberNames() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Room) broadcastEvent(encode func(string) ([]byte, error), name string, except Member) {
	frame, err := encode(name)
	if err != nil {
		zap.L().Error("chat.encode_event", zap.String("room", r.id), zap.Error(err))
		return
	}
	for _, m := range r.members {
		if except != nil && m.ID() == except.ID() {
			continue
		}
		r.deliver(m, frame)
	}
}

// deliver is best effort: a failing member is closed in the background and
// never holds up the others.
func (r *Room) deliver(m Member, frame []byte) {
	err := m.Send(frame)
	if errors.Is(err, ErrMemberClosed) {
		return
	}
	if err != nil {
		zap.L().Warn("chat.member_send_failed",
			zap.String("room", r.id),
			zap.String("member", m.ID()),
			zap.Error(err),
		)
		go closeMember(m, "send failed")
	}
}

func (r *Room) observe(kind, name string) {
	r.opts.Observer.ObservePresence(PresenceEvent{
		Room:        r.id,
		Kind:        kind,
		Author:      name,
		Connections: len(r.members),
		Members:     len(r.names),
		At:          r.opts.Now().UTC(),
	})
}

func closeMember(m Member, reason string) {
	if err := m.Close(reason); err != nil {
		zap.L().Debug("chat.member_close", zap.String("member", m.ID()), zap.Error(err))
	}
}
