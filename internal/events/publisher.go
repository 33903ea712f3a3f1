// Package events mirrors room lifecycle changes to an external sink.
package events

import (
	"context"
	"time"

	"github.com/dkeye/poker/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	RoomCreated       = "room.created"
	ParticipantJoined = "participant.joined"
	VoteCast          = "vote.cast"
	CardsRevealed     = "cards.revealed"
	RoomReset         = "room.reset"
	ParticipantLeft   = "participant.left"
	RoomDestroyed     = "room.destroyed"
)

type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Room        domain.RoomCode        `json:"room"`
	Participant string                 `json:"participant,omitempty"`
	Votes       map[string]domain.Vote `json:"votes,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	At          time.Time              `json:"at"`
}

func New(typ string, room domain.RoomCode) Event {
	return Event{ID: uuid.NewString(), Type: typ, Room: room, At: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher only writes events to the debug log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	log.Debug().
		Str("module", "events").
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("room", ev.Room.String()).
		Str("participant", ev.Participant).
		Msg("event")
	return nil
}
