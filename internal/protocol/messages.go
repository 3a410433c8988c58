// Package protocol implements the chat wire format: the tagged frames the
// relay pushes to clients and the single message shape clients send back.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
)

// Frame types pushed by the server.
const (
	TypeConnect = "connect"
	TypeJoin    = "join"
	TypeLeave   = "leave"
	TypeMsg     = "msg"
	TypeError   = "error"
)

// ErrProtocolViolation is returned for any inbound frame that cannot be
// decoded into a ClientMessage. The connection that sent it gets closed.
var ErrProtocolViolation = errors.New("protocol violation")

var validate = validator.New()

// Frame wraps every server→client frame.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RawFrame is a server frame with its payload left undecoded.
type RawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageData is the payload of a "msg" frame. ReplyTo is serialised as null
// when the message is not a reply.
type MessageData struct {
	MessageID string    `json:"message_id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   *string   `json:"reply_to"`
}

// ClientMessage is a decoded client→server frame. Author is whatever the
// client claimed and must not be trusted. ReplyTo is empty when absent.
type ClientMessage struct {
	Author  string
	Content string
	ReplyTo string
}

type inbound struct {
	Author  *string `json:"author"   validate:"omitempty,max=256"`
	Content *string `json:"content"  validate:"required"`
	ReplyTo *string `json:"reply_to" validate:"omitempty,ulid"`
}

// EncodeConnect builds the membership snapshot sent once to a new member.
func EncodeConnect(members []string) ([]byte, error) {
	if members == nil {
		members = []string{}
	}
	return json.Marshal(Frame{Type: TypeConnect, Data: members})
}

func EncodeJoin(author string) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeJoin, Data: author})
}

func EncodeLeave(author string) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeLeave, Data: author})
}

func EncodeMsg(msg MessageData) ([]byte, error) {
	if msg.ReplyTo != nil && *msg.ReplyTo == "" {
		msg.ReplyTo = nil
	}
	return json.Marshal(Frame{Type: TypeMsg, Data: msg})
}

// EncodeError builds an error frame addressed to a single connection.
func EncodeError(reason string) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeError, Data: reason})
}

// DecodeClientMessage parses and validates one inbound frame. Every failure
// wraps ErrProtocolViolation.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ClientMessage{}, fmt.Errorf("%w: frame is not a JSON object", ErrProtocolViolation)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var in inbound
	if err := dec.Decode(&in); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ClientMessage{}, fmt.Errorf("%w: trailing data after frame", ErrProtocolViolation)
	}

	// an empty reply_to is treated as absent
	if in.ReplyTo != nil && *in.ReplyTo == "" {
		in.ReplyTo = nil
	}
	if err := validate.Struct(in); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	msg := ClientMessage{Content: *in.Content}
	if in.Author != nil {
		msg.Author = *in.Author
	}
	if in.ReplyTo != nil {
		msg.ReplyTo = *in.ReplyTo
	}
	return msg, nil
}

// DecodeFrame parses a server frame; clients and tests use it to dispatch on
// Type before decoding Data.
func DecodeFrame(data []byte) (RawFrame, error) {
	var f RawFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return RawFrame{}, err
	}
	if f.Type == "" {
		return RawFrame{}, fmt.Errorf("frame without type")
	}
	return f, nil
}
