package orch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/poker/internal/app"
	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/domain"
	"github.com/dkeye/poker/internal/events"
	"github.com/dkeye/poker/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrMalformed is reported for frames that cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// Private error texts shown to the originating connection.
const (
	MsgRoomExists      = "Room already exists"
	MsgRoomNotFound    = "Room does not exist"
	MsgAdminName       = "That name belongs to the room admin"
	MsgVotesIncomplete = "Not everyone has voted yet"
	MsgInvalidCode     = "Invalid room code"
	MsgInvalidName     = "Invalid name"
	MsgMalformed       = "Malformed message"
)

// Orchestrator handles client intents. Calls for one connection must be
// made sequentially, with OnDisconnect last.
type Orchestrator struct {
	Registry     *app.Registry
	Rooms        *core.Directory
	Policy       app.Policy
	RevealPolicy core.RevealPolicy
	Events       events.Publisher
	Metrics      *metrics.Metrics
}

// Connect registers a freshly upgraded connection.
func (o *Orchestrator) Connect(conn core.SignalConnection, clientToken string, cancel context.CancelFunc) {
	o.Registry.BindSignal(conn, clientToken, cancel)
	o.Metrics.ConnOpened()
}

// OnDisconnect is the implicit leave. It is safe to call after an
// explicit leave and more than once.
func (o *Orchestrator) OnDisconnect(conn core.SignalConnection) {
	if _, ok := o.Registry.GetSession(conn.ID()); !ok {
		return
	}
	if b, ok := o.Registry.Binding(conn.ID()); ok {
		o.leave(conn, b.Room)
	}
	o.Registry.Unbind(conn.ID())
	o.Metrics.ConnClosed()
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Msg("disconnected")
}

// Reject answers conn with the private message for err.
func (o *Orchestrator) Reject(conn core.SignalConnection, err error) {
	msg, reason := describe(err)
	o.Metrics.Rejected(reason)
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("reason", reason).Msg("intent rejected")
	send(conn, core.NewError(msg))
}

// ignore records an intent dropped without a reply.
func (o *Orchestrator) ignore(conn core.SignalConnection, err error) {
	_, reason := describe(err)
	o.Metrics.Rejected(reason)
	log.Debug().Str("module", "orch").Str("conn", string(conn.ID())).Str("reason", reason).Msg("intent ignored")
}

// Pong answers a keepalive ping.
func (o *Orchestrator) Pong(conn core.SignalConnection) {
	send(conn, core.Notice{Type: core.TypePong})
}

// JanitorHook reports rooms collected by the janitor.
func (o *Orchestrator) JanitorHook(room *core.Room, reason string) {
	o.Metrics.SetRooms(o.Rooms.Len())
	o.publish(withReason(events.New(events.RoomDestroyed, room.Code()), reason))
}

func describe(err error) (msg, reason string) {
	switch {
	case errors.Is(err, core.ErrRoomExists):
		return MsgRoomExists, "room_exists"
	case errors.Is(err, core.ErrRoomNotFound), errors.Is(err, core.ErrRoomClosed):
		return MsgRoomNotFound, "room_not_found"
	case errors.Is(err, core.ErrAdminName):
		return MsgAdminName, "admin_name"
	case errors.Is(err, core.ErrVotesIncomplete):
		return MsgVotesIncomplete, "votes_incomplete"
	case errors.Is(err, core.ErrNotAdmin):
		return "", "not_admin"
	case errors.Is(err, domain.ErrRoomCodeInvalid):
		return MsgInvalidCode, "invalid_code"
	case errors.Is(err, domain.ErrNameEmpty), errors.Is(err, domain.ErrNameTooLong):
		return MsgInvalidName, "invalid_name"
	}
	return MsgMalformed, "malformed"
}

// settle applies the backpressure policy to peers that missed frames.
func (o *Orchestrator) settle(room *core.Room, res core.PublishResult) {
	if len(res.Dropped) == 0 {
		return
	}
	o.Metrics.DroppedFrames(len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		if o.Policy.OnBackPressure(room, slow) != app.KickMember {
			continue
		}
		log.Warn().Str("module", "orch").Str("room", room.Code().String()).Str("conn", string(slow.ID())).Msg("kicking slow peer")
		if !o.Registry.Cancel(slow.ID()) {
			slow.Close()
		}
	}
}

// boundRoom returns the room conn is joined to. A code that names another
// room yields false.
func (o *Orchestrator) boundRoom(conn core.SignalConnection, rawCode string) (*core.Room, bool) {
	b, ok := o.Registry.Binding(conn.ID())
	if !ok {
		return nil, false
	}
	if rawCode == "" {
		return b.Room, true
	}
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil || code != b.Room.Code() {
		log.Debug().Str("module", "orch").Str("conn", string(conn.ID())).Str("code", rawCode).Msg("room code does not match binding")
		return nil, false
	}
	return b.Room, true
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.Events == nil {
		return
	}
	if err := o.Events.Publish(context.Background(), ev); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", ev.Type).Msg("publish event")
	}
}

func withParticipant(ev events.Event, name string) events.Event {
	ev.Participant = name
	return ev
}

func withReason(ev events.Event, reason string) events.Event {
	ev.Reason = reason
	return ev
}

func send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("private reply dropped")
	}
}
