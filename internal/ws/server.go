package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chatrelay/internal/chat"
	"chatrelay/internal/identity"
	"chatrelay/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	identifyTimeout = 3 * time.Second
	joinTimeout     = 5 * time.Second
	postTimeout     = 1900 * time.Millisecond
)

type Options struct {
	SendBuffer  int
	Overflow    OverflowPolicy
	ReadLimit   int64
	WriteWait   time.Duration
	PongWait    time.Duration
	GuestPrefix string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.Overflow == "" {
		o.Overflow = OverflowClose
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.GuestPrefix == "" {
		o.GuestPrefix = "guest"
	}
	return o
}

type WsServer struct {
	rooms      *chat.Registry
	identities identity.Provider
	upgrader   websocket.Upgrader
	opts       Options
}

func NewWsServer(rooms *chat.Registry, identities identity.Provider, opts Options) *WsServer {
	if identities == nil {
		identities = identity.AnonymousProvider
	}
	return &WsServer{
		rooms:      rooms,
		identities: identities,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
		opts: opts.withDefaults(),
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point for GET /chat/:room
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	roomID := ginCtx.Param("room")
	if err := chat.ValidateRoomID(roomID); err != nil {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), identifyTimeout)
	ident, err := s.identities.Identify(ctx, identity.TokenFromRequest(ginCtx.Request))
	cancel()
	if err != nil {
		zap.L().Warn("ws.identify", zap.String("room", roomID), zap.Error(err))
		ginCtx.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider unavailable"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	id := uuid.NewString()
	name, auth := ident.DisplayName, ident.Authenticated
	if !auth || name == "" {
		name, auth = s.guestName(id), false
	}

	// ─────────────────── Client joined ────────────────────────
	conn := newClientConn(id, name, auth, rawConn, s.opts)
	conn.start()

	joinCtx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	room, members, err := s.rooms.Join(joinCtx, roomID, conn)
	cancel()
	if err != nil {
		zap.L().Warn("ws.join", zap.String("room", roomID), zap.String("conn", id), zap.Error(err))
		conn.closeWith(websocket.CloseInternalServerErr, "join failed")
		return
	}
	zap.L().Debug("ws.joined",
		zap.String("room", roomID),
		zap.String("conn", id),
		zap.String("name", name),
		zap.Int("members", len(members)),
	)

	conn.bindLeave(func() {
		room.Leave(conn)
		zap.L().Debug("ws.left", zap.String("room", roomID), zap.String("conn", id))
	})

	go conn.readPump(s.opts.ReadLimit,
		func(c *clientConn, data []byte) bool { return s.handleFrame(room, c, data) },
		func(c *clientConn) {
			zap.L().Debug("ws.read_done", zap.String("room", roomID), zap.String("conn", c.id))
		},
	)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) guestName(connID string) string {
	short := connID
	if len(short) > 8 {
		short = short[:8]
	}
	return s.opts.GuestPrefix + "-" + short
}

// handleFrame posts one inbound frame. It returns false when the connection
// must stop reading.
func (s *WsServer) handleFrame(room *chat.Room, c *clientConn, data []byte) bool {
	in, err := protocol.DecodeClientMessage(data)
	if err != nil {
		zap.L().Info("ws.protocol_violation", zap.String("room", room.ID()), zap.String("conn", c.id), zap.Error(err))
		c.sendError(err.Error())
		c.closeWith(websocket.CloseProtocolError, "protocol violation")
		return false
	}
	if in.Author != "" && in.Author != c.displayName {
		zap.L().Debug("ws.author_ignored", zap.String("conn", c.id), zap.String("claimed", in.Author))
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	if _, err := room.Post(ctx, c, in.Content, in.ReplyTo); err != nil {
		c.sendError(err.Error())
		if errors.Is(err, chat.ErrRoomClosed) || errors.Is(err, chat.ErrNotMember) {
			return false
		}
	}
	return true
}
