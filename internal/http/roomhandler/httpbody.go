package roomhandler

import "chatrelay/internal/chat"

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type RoomHistoryQuery struct {
	Limit int `form:"limit,default=50" binding:"gte=0,lte=500"`
} // @name RoomHistoryQuery

type RoomListResponse struct {
	Rooms []chat.RoomStats `json:"rooms"`
} // @name RoomListResponse

type RoomHistoryResponse struct {
	Room     string                   `json:"room"`
	Messages []chat.PositionedMessage `json:"messages"`
} // @name RoomHistoryResponse
