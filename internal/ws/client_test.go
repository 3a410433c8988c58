package ws

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"chatrelay/internal/chat"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newQueueOnlyConn builds a connection without a socket; only the send queue
// is exercised.
func newQueueOnlyConn(buffer int, policy OverflowPolicy) *clientConn {
	c := newClientConn("c", "carol", true, nil, Options{
		SendBuffer: buffer,
		Overflow:   policy,
		WriteWait:  time.Second,
		PongWait:   time.Second,
	})
	c.state.Store(int32(StateOpen))
	return c
}

func drain(c *clientConn) []string {
	var out []string
	for {
		select {
		case f := <-c.send:
			out = append(out, string(f))
		default:
			return out
		}
	}
}

func TestClientConn_SendOverflowClose(t *testing.T) {
	c := newQueueOnlyConn(2, OverflowClose)

	require.NoError(t, c.Send([]byte("1")))
	require.NoError(t, c.Send([]byte("2")))
	assert.ErrorIs(t, c.Send([]byte("3")), ErrSendQueueFull)
	assert.Equal(t, []string{"1", "2"}, drain(c))
}

func TestClientConn_SendOverflowDropOldest(t *testing.T) {
	c := newQueueOnlyConn(2, OverflowDropOldest)

	for _, f := range []string{"1", "2", "3", "4"} {
		require.NoError(t, c.Send([]byte(f)))
	}
	assert.Equal(t, []string{"3", "4"}, drain(c))
}

func TestClientConn_SendAfterClose(t *testing.T) {
	c := newQueueOnlyConn(2, OverflowClose)

	require.NoError(t, c.Close("bye"))
	assert.Equal(t, StateClosing, c.State())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrConnClosed)
	assert.ErrorIs(t, c.Send([]byte("x")), chat.ErrMemberClosed)

	// second close keeps the first reason
	require.NoError(t, c.Close("again"))
	assert.Equal(t, "bye", c.reason)
}

func TestClientConn_SendBeforeOpen(t *testing.T) {
	c := newClientConn("c", "carol", false, nil, Options{SendBuffer: 1})
	assert.Equal(t, StateConnecting, c.State())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrConnClosed)
}

func TestTruncateReason(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   int
	}{
		{name: "short", reason: "bye", want: 3},
		{name: "ascii", reason: strings.Repeat("r", 300), want: maxCloseReason},
		// two-byte runes: byte 123 is a continuation byte
		{name: "multi-byte", reason: strings.Repeat("é", 100), want: maxCloseReason - 1},
		{name: "four-byte", reason: strings.Repeat("😀", 40), want: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateReason(tt.reason)
			assert.Len(t, got, tt.want)
			assert.True(t, utf8.ValidString(got))
			assert.True(t, strings.HasPrefix(tt.reason, got))
		})
	}
}

func TestClientConn_CloseLeavesOnce(t *testing.T) {
	c := newQueueOnlyConn(1, OverflowClose)
	var leaves atomic.Int32
	c.bindLeave(func() { leaves.Add(1) })
	assert.Zero(t, leaves.Load())

	require.NoError(t, c.Close("bye"))
	assert.Equal(t, int32(1), leaves.Load(), "leave runs before Close returns")

	c.closeWith(websocket.CloseProtocolError, "again")
	assert.Equal(t, int32(1), leaves.Load())
}

func TestClientConn_BindLeaveAfterClose(t *testing.T) {
	c := newQueueOnlyConn(1, OverflowClose)
	require.NoError(t, c.Close("closed during join"))

	var leaves atomic.Int32
	c.bindLeave(func() { leaves.Add(1) })
	assert.Equal(t, int32(1), leaves.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
