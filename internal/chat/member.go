package chat

import (
	"context"
	"time"
)

// Member is one live connection as seen by a room. Send must not block; the
// room calls it from its mutation loop. Once Close has been called, Send
// returns ErrMemberClosed and the member is expected to Leave on its own.
type Member interface {
	ID() string
	DisplayName() string
	Authenticated() bool
	Send(frame []byte) error
	Close(reason string) error
}

// PresenceEvent reports a membership change together with the resulting
// room size. Connections counts sockets, Members counts distinct names.
type PresenceEvent struct {
	Room        string    `json:"room"`
	Kind        string    `json:"kind"` // "join" or "leave"
	Author      string    `json:"author"`
	Connections int       `json:"connections"`
	Members     int       `json:"members"`
	At          time.Time `json:"at"`
}

// Observer receives presence events from room loops. Implementations must
// return quickly.
type Observer interface {
	ObservePresence(PresenceEvent)
}

// Submission is what a Moderator gets to review before a post is committed.
type Submission struct {
	Room          string
	Author        string
	Authenticated bool
	Content       string
	ReplyTo       string
}

// Moderator may veto a post. A non-nil error is returned to the poster and
// nothing is broadcast.
type Moderator interface {
	Review(ctx context.Context, s Submission) error
}

type ModeratorFunc func(ctx context.Context, s Submission) error

func (f ModeratorFunc) Review(ctx context.Context, s Submission) error { return f(ctx, s) }

// AllowAll is the default moderator.
var AllowAll Moderator = ModeratorFunc(func(context.Context, Submission) error { return nil })

// RequireAuthenticated rejects posts from guests.
var RequireAuthenticated Moderator = ModeratorFunc(func(_ context.Context, s Submission) error {
	if !s.Authenticated {
		return ErrGuestPost
	}
	return nil
})

type nopObserver struct{}

func (nopObserver) ObservePresence(PresenceEvent) {}
