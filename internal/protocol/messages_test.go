package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validULID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"

func TestEncodeFrames(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reply := validULID

	tests := []struct {
		name   string
		encode func() ([]byte, error)
		want   string
	}{
		{
			name:   "connect",
			encode: func() ([]byte, error) { return EncodeConnect([]string{"alice", "bob"}) },
			want:   `{"type":"connect","data":["alice","bob"]}`,
		},
		{
			name:   "connect with no members",
			encode: func() ([]byte, error) { return EncodeConnect(nil) },
			want:   `{"type":"connect","data":[]}`,
		},
		{
			name:   "join",
			encode: func() ([]byte, error) { return EncodeJoin("bob") },
			want:   `{"type":"join","data":"bob"}`,
		},
		{
			name:   "leave",
			encode: func() ([]byte, error) { return EncodeLeave("bob") },
			want:   `{"type":"leave","data":"bob"}`,
		},
		{
			name: "msg without reply",
			encode: func() ([]byte, error) {
				return EncodeMsg(MessageData{MessageID: "m1", Content: "hello", Author: "alice", Timestamp: ts})
			},
			want: `{"type":"msg","data":{"message_id":"m1","content":"hello","author":"alice","timestamp":"2024-03-01T12:00:00Z","reply_to":null}}`,
		},
		{
			name: "msg with reply",
			encode: func() ([]byte, error) {
				return EncodeMsg(MessageData{MessageID: "m2", Content: "hi", Author: "bob", Timestamp: ts, ReplyTo: &reply})
			},
			want: `{"type":"msg","data":{"message_id":"m2","content":"hi","author":"bob","timestamp":"2024-03-01T12:00:00Z","reply_to":"` + validULID + `"}}`,
		},
		{
			name:   "error",
			encode: func() ([]byte, error) { return EncodeError("message content cannot be empty") },
			want:   `{"type":"error","data":"message content cannot be empty"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ClientMessage
		wantErr bool
	}{
		{
			name:  "content only",
			input: `{"content":"hello"}`,
			want:  ClientMessage{Content: "hello"},
		},
		{
			name:  "advisory author and reply",
			input: `{"author":"mallory","content":"hi","reply_to":"` + validULID + `"}`,
			want:  ClientMessage{Author: "mallory", Content: "hi", ReplyTo: validULID},
		},
		{
			name:  "null reply_to",
			input: `{"content":"hi","reply_to":null}`,
			want:  ClientMessage{Content: "hi"},
		},
		{
			name:  "empty reply_to is ignored",
			input: `{"content":"hi","reply_to":""}`,
			want:  ClientMessage{Content: "hi"},
		},
		{
			name:  "blank content is left to the room",
			input: `{"content":"   "}`,
			want:  ClientMessage{Content: "   "},
		},
		{name: "not json", input: `not json`, wantErr: true},
		{name: "json array", input: `["hello"]`, wantErr: true},
		{name: "json null", input: `null`, wantErr: true},
		{name: "missing content", input: `{"author":"a"}`, wantErr: true},
		{name: "content wrong type", input: `{"content":42}`, wantErr: true},
		{name: "reply_to not a ulid", input: `{"content":"x","reply_to":"abc"}`, wantErr: true},
		{name: "trailing data", input: `{"content":"x"}{"content":"y"}`, wantErr: true},
		{name: "empty frame", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrProtocolViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	data, err := EncodeJoin("carol")
	require.NoError(t, err)

	f, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, f.Type)

	var name string
	require.NoError(t, json.Unmarshal(f.Data, &name))
	assert.Equal(t, "carol", name)

	_, err = DecodeFrame([]byte(`{"data":1}`))
	assert.Error(t, err)
}
