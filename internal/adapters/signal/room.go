package signal

import (
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	UserName string `json:"userName"`
	RoomCode string `json:"roomCode"`
}

type codePayload struct {
	RoomCode string `json:"roomCode"`
}

func (ctl *SignalWSController) handleCreateRoom(conn *WsSignalConn, data []byte) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("room", p.RoomCode).Str("name", p.UserName).Msg("create room")
	ctl.Orch.CreateRoom(conn, p.UserName, p.RoomCode)
}

func (ctl *SignalWSController) handleJoinRoom(conn *WsSignalConn, data []byte) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("room", p.RoomCode).Str("name", p.UserName).Msg("join")
	ctl.Orch.JoinRoom(conn, p.UserName, p.RoomCode)
}

// handleLeaveRoom leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeaveRoom(conn *WsSignalConn, data []byte) {
	var p codePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Msg("leave")
	ctl.Orch.Leave(conn, p.RoomCode)
}
