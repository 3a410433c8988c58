package roomhandler

import (
	"context"
	"net/http"

	"chatrelay/internal/chat"

	"github.com/gin-gonic/gin"
)

// Directory is the read side of the room registry.
type Directory interface {
	Stats(ctx context.Context) []chat.RoomStats
	RoomStats(ctx context.Context, id string) (chat.RoomStats, bool)
	History(ctx context.Context, id string, limit int) ([]chat.PositionedMessage, bool)
}

type Handler struct {
	rooms Directory
}

func New(rooms Directory) *Handler { return &Handler{rooms: rooms} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id", h.info)
	r.GET("/rooms/:id/messages", h.messages)
}

// @Summary		List live rooms
// @Description	Returns every room that currently has at least one connection, ordered by id.
// @Tags			Rooms
// @Success		200	{object}	RoomListResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, RoomListResponse{Rooms: h.rooms.Stats(c.Request.Context())})
}

// @Summary		Get room details
// @Description	Returns the member names and counters of a live room.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(alice)
// @Success		200	{object}	chat.RoomStats
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) info(c *gin.Context) {
	id := c.Param("id")
	if err := chat.ValidateRoomID(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	st, ok := h.rooms.RoomStats(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary		Recent messages
// @Description	Returns the newest messages of a live room, newest first, each with its grouping position.
// @Tags			Rooms
// @Param			id		path		string	true	"Room ID"								default(alice)
// @Param			limit	query		int		false	"Max results (0 = all retained, ≤500)"	minimum(0)	maximum(500)	default(50)
// @Success		200		{object}	RoomHistoryResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{id}/messages [get]
func (h *Handler) messages(c *gin.Context) {
	id := c.Param("id")
	if err := chat.ValidateRoomID(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	var q RoomHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	msgs, ok := h.rooms.History(c.Request.Context(), id, q.Limit)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if msgs == nil {
		msgs = []chat.PositionedMessage{}
	}
	c.JSON(http.StatusOK, RoomHistoryResponse{Room: id, Messages: msgs})
}
