package chat

import (
	"errors"
	"unicode/utf8"
)

const MaxRoomIDLength = 100

var (
	ErrAlreadyJoined  = errors.New("already joined")
	ErrEmptyMessage   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrNotMember      = errors.New("not a member of this room")
	ErrRoomClosed     = errors.New("room closed")
	ErrInvalidRoom    = errors.New("invalid room identifier")
	ErrGuestPost      = errors.New("guests cannot post in this room")

	// ErrMemberClosed is returned by Member.Send once the member is closing.
	// The room has already been told to drop it, so no further close is due.
	ErrMemberClosed = errors.New("member closed")
)

// ValidateRoomID checks a room identifier taken from the request path.
func ValidateRoomID(id string) error {
	if id == "" || len(id) > MaxRoomIDLength || !utf8.ValidString(id) {
		return ErrInvalidRoom
	}
	return nil
}
