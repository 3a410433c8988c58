package chat

import (
	"time"

	"chatrelay/internal/protocol"
)

// Message is a committed chat line. It is never modified after the room
// appends it.
type Message struct {
	ID        string    `json:"message_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// Wire converts the message into the "msg" frame payload.
func (m Message) Wire() protocol.MessageData {
	data := protocol.MessageData{
		MessageID: m.ID,
		Content:   m.Content,
		Author:    m.Author,
		Timestamp: m.Timestamp,
	}
	if m.ReplyTo != "" {
		reply := m.ReplyTo
		data.ReplyTo = &reply
	}
	return data
}

// PositionedMessage pairs a message with its grouping position, as served to
// clients that render history.
type PositionedMessage struct {
	Message
	Position Position `json:"position"`
}
