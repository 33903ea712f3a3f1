package orch

import (
	"errors"

	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/domain"
	"github.com/dkeye/poker/internal/events"
	"github.com/rs/zerolog/log"
)

const (
	reasonAdminLeft = "admin_left"
	reasonEmpty     = "empty"
)

// CreateRoom opens a room with the caller as admin. A rejected create
// leaves the caller's current room untouched.
func (o *Orchestrator) CreateRoom(conn core.SignalConnection, rawName, rawCode string) {
	o.Metrics.Intent("createRoom")
	name, code, err := normalize(rawName, rawCode)
	if err != nil {
		o.Reject(conn, err)
		return
	}
	old, bound := o.Registry.Binding(conn.ID())

	room, res, err := o.Rooms.CreateWith(code, name, conn, o.RevealPolicy, func(tx *core.Tx) {
		o.Registry.BindRoom(conn.ID(), tx.Room(), name)
		tx.Send(conn, core.NewRoomCreated(code, name))
		tx.BroadcastState()
	})
	if err != nil {
		o.Reject(conn, err)
		return
	}
	o.settle(room, res)
	o.Metrics.SetRooms(o.Rooms.Len())
	o.publish(withParticipant(events.New(events.RoomCreated, code), name))

	if bound {
		o.leavePrevious(conn, old.Room, room)
	}
}

// JoinRoom adds the caller to an existing room, or rebinds the
// participant of the same name to this connection. A rejected join leaves
// the caller's current room untouched.
func (o *Orchestrator) JoinRoom(conn core.SignalConnection, rawName, rawCode string) {
	o.Metrics.Intent("joinRoom")
	name, code, err := normalize(rawName, rawCode)
	if err != nil {
		o.Reject(conn, err)
		return
	}
	o.join(conn, name, code, true)
}

func (o *Orchestrator) join(conn core.SignalConnection, name string, code domain.RoomCode, retry bool) {
	room, ok := o.Rooms.Get(code)
	if !ok {
		o.Reject(conn, core.ErrRoomNotFound)
		return
	}
	old, bound := o.Registry.Binding(conn.ID())

	var (
		joinErr    error
		switchSeat bool
	)
	res, err := room.Update(func(tx *core.Tx) {
		cur, seated := tx.NameOf(conn)
		if tx.IsAdmin(name) && cur != name {
			joinErr = core.ErrAdminName
			return
		}
		if seated && cur != name {
			switchSeat = true
			return
		}
		prev, rebound := tx.AddOrRebind(name, conn)
		if rebound && prev != nil && prev.ID() != conn.ID() {
			o.Registry.ClearRoom(prev.ID(), room)
		}
		o.Registry.BindRoom(conn.ID(), room, name)
		tx.Send(conn, core.NewRoomJoined(code, tx.Admin()))
		tx.BroadcastState()
	})
	if err == nil {
		err = joinErr
	}
	if err != nil {
		o.Reject(conn, err)
		return
	}
	if switchSeat {
		// Taking another name in the same room: give up the old seat first.
		o.leave(conn, room)
		if retry {
			o.join(conn, name, code, false)
		}
		return
	}
	o.settle(room, res)
	o.publish(withParticipant(events.New(events.ParticipantJoined, code), name))

	if bound {
		o.leavePrevious(conn, old.Room, room)
	}
}

// Leave removes the caller from its room. The connection stays open.
func (o *Orchestrator) Leave(conn core.SignalConnection, rawCode string) {
	o.Metrics.Intent("leaveRoom")
	room, ok := o.boundRoom(conn, rawCode)
	if !ok {
		return
	}
	o.leave(conn, room)
}

// leavePrevious drops the seat conn held before a successful create or
// join moved it to cur.
func (o *Orchestrator) leavePrevious(conn core.SignalConnection, prev, cur *core.Room) {
	if prev == cur {
		return
	}
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("from_room", prev.Code().String()).Msg("leaving previous room")
	o.leave(conn, prev)
}

func (o *Orchestrator) leave(conn core.SignalConnection, room *core.Room) {
	var (
		name      string
		destroyed string
	)
	res, err := room.Update(func(tx *core.Tx) {
		name, _ = tx.NameOf(conn)
		removed, wasAdmin := tx.RemoveByConnection(conn)
		o.Registry.ClearRoom(conn.ID(), room)
		if !removed {
			return
		}
		switch {
		case wasAdmin:
			tx.Broadcast(core.Notice{Type: core.TypeAdminLeft})
			o.unbindAll(room)
			tx.Close()
			destroyed = reasonAdminLeft
		case tx.Len() == 0:
			tx.Close()
			destroyed = reasonEmpty
		default:
			tx.BroadcastState()
		}
	})
	if errors.Is(err, core.ErrRoomClosed) {
		o.Registry.ClearRoom(conn.ID(), room)
		return
	}
	o.settle(room, res)
	if name != "" {
		log.Info().Str("module", "orch").Str("room", room.Code().String()).Str("name", name).Msg("participant left")
		o.publish(withParticipant(events.New(events.ParticipantLeft, room.Code()), name))
	}
	if destroyed != "" && o.Rooms.Remove(room) {
		o.Metrics.SetRooms(o.Rooms.Len())
		o.publish(withReason(events.New(events.RoomDestroyed, room.Code()), destroyed))
	}
}

// unbindAll clears every registry binding that still points at room.
func (o *Orchestrator) unbindAll(room *core.Room) {
	for _, b := range o.Registry.MembersOfRoom(room) {
		o.Registry.ClearRoom(b.Conn.ID(), room)
	}
}

func normalize(rawName, rawCode string) (string, domain.RoomCode, error) {
	name, err := domain.NormalizeName(rawName)
	if err != nil {
		return "", "", err
	}
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return "", "", err
	}
	return name, code, nil
}
