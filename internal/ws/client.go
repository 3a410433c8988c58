package ws

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"chatrelay/internal/chat"
	"chatrelay/internal/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the lifecycle of a client connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// OverflowPolicy decides what Send does when the outbound queue is full.
type OverflowPolicy string

const (
	OverflowClose      OverflowPolicy = "close"
	OverflowDropOldest OverflowPolicy = "drop_oldest"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrConnClosed    = fmt.Errorf("connection closed: %w", chat.ErrMemberClosed)
)

const maxCloseReason = 123 // control frame payload minus the status code

// clientConn is one websocket client. Only writePump writes data frames, so
// frames reach the peer in the order Send accepted them.
type clientConn struct {
	id          string
	displayName string
	auth        bool

	rawConn   *websocket.Conn
	send      chan []byte
	policy    OverflowPolicy
	writeWait time.Duration
	pongWait  time.Duration

	state     atomic.Int32
	closeOnce sync.Once
	closing   chan struct{}
	closeCode int
	reason    string
	done      chan struct{}

	leaveMu sync.Mutex
	leave   func()
}

func newClientConn(id, displayName string, auth bool, rawConn *websocket.Conn, opts Options) *clientConn {
	c := &clientConn{
		id:          id,
		displayName: displayName,
		auth:        auth,
		rawConn:     rawConn,
		send:        make(chan []byte, opts.SendBuffer),
		policy:      opts.Overflow,
		writeWait:   opts.WriteWait,
		pongWait:    opts.PongWait,
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *clientConn) ID() string          { return c.id }
func (c *clientConn) DisplayName() string { return c.displayName }
func (c *clientConn) Authenticated() bool { return c.auth }
func (c *clientConn) State() State        { return State(c.state.Load()) }

// Send queues a frame without blocking.
func (c *clientConn) Send(frame []byte) error {
	if c.State() != StateOpen {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
	}

	if c.policy == OverflowDropOldest {
		select {
		case <-c.send:
			zap.L().Debug("ws.frame_dropped", zap.String("conn", c.id))
		default:
		}
		select {
		case c.send <- frame:
			return nil
		default:
		}
	}
	return ErrSendQueueFull
}

// Close leaves the room right away, then lets the write pump flush and close
// the socket in the background.
func (c *clientConn) Close(reason string) error {
	c.closeWith(websocket.CloseNormalClosure, reason)
	return nil
}

func (c *clientConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.reason = truncateReason(reason)
		c.state.Store(int32(StateClosing))
		close(c.closing)
		c.runLeave()
	})
}

// bindLeave registers how the connection leaves its room. If the connection
// is already closing, leave runs immediately.
func (c *clientConn) bindLeave(leave func()) {
	c.leaveMu.Lock()
	if c.State() < StateClosing {
		c.leave = leave
		c.leaveMu.Unlock()
		return
	}
	c.leaveMu.Unlock()
	leave()
}

func (c *clientConn) runLeave() {
	c.leaveMu.Lock()
	leave := c.leave
	c.leave = nil
	c.leaveMu.Unlock()
	if leave != nil {
		leave()
	}
}

// truncateReason keeps a close reason within a control frame without
// splitting a UTF-8 sequence.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	i := maxCloseReason
	for i > 0 && !utf8.RuneStart(reason[i]) {
		i--
	}
	return reason[:i]
}

func (c *clientConn) sendError(reason string) {
	frame, err := protocol.EncodeError(reason)
	if err != nil {
		return
	}
	_ = c.Send(frame)
}

func (c *clientConn) start() {
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
	go c.writePump()
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.closeWith(websocket.CloseAbnormalClosure, "")
		_ = c.rawConn.Close()
		c.state.Store(int32(StateClosed))
		close(c.done)
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closing:
			c.flush()
			msg := websocket.FormatCloseMessage(c.closeCode, c.reason)
			_ = c.rawConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, best effort.
func (c *clientConn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *clientConn) write(frame []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, frame)
}

// readPump feeds inbound text frames to onFrame until the peer goes away or
// onFrame returns false. It then closes the connection, which leaves the
// room if that has not happened yet, and runs onClose.
func (c *clientConn) readPump(readLimit int64, onFrame func(*clientConn, []byte) bool, onClose func(*clientConn)) {
	defer func() {
		c.Close("connection closed")
		onClose(c)
	}()

	c.rawConn.SetReadLimit(readLimit)
	_ = c.rawConn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		mt, data, err := c.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Debug("ws.read", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			c.sendError("only text frames are accepted")
			c.closeWith(websocket.CloseUnsupportedData, "protocol violation")
			return
		}
		if !onFrame(c, data) {
			return
		}
	}
}
