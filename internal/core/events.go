package core

import (
	"github.com/dkeye/poker/internal/domain"
)

// Outbound message types.
const (
	TypeRoomCreated   = "roomCreated"
	TypeRoomJoined    = "roomJoined"
	TypeError         = "error"
	TypePong          = "pong"
	TypeRoomState     = "roomState"
	TypeCardsRevealed = "cardsRevealed"
	TypeRoomReset     = "roomReset"
	TypeAdminLeft     = "adminLeft"
	TypeRoomClosed    = "roomClosed"
)

// RoomAck is the private reply to createRoom and joinRoom.
type RoomAck struct {
	Type     string          `json:"type"`
	RoomCode domain.RoomCode `json:"roomCode"`
	Admin    string          `json:"admin"`
}

func NewRoomCreated(code domain.RoomCode, admin string) RoomAck {
	return RoomAck{Type: TypeRoomCreated, RoomCode: code, Admin: admin}
}

func NewRoomJoined(code domain.RoomCode, admin string) RoomAck {
	return RoomAck{Type: TypeRoomJoined, RoomCode: code, Admin: admin}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}

type CardsRevealed struct {
	Type  string                 `json:"type"`
	Votes map[string]domain.Vote `json:"votes"`
}

// Notice is a payload-less room event (roomReset, adminLeft, pong).
type Notice struct {
	Type string `json:"type"`
}

type RoomClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
