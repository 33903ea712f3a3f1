package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/poker/internal/core"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	ReasonEmpty = "empty"
	ReasonIdle  = "idle"
)

// Janitor garbage-collects rooms that nobody is left in and, when
// IdleTimeout is set, rooms that have not changed for that long.
type Janitor struct {
	Rooms       *core.Directory
	Registry    *Registry
	Clock       clockwork.Clock
	Interval    time.Duration
	IdleTimeout time.Duration

	// OnDestroy is called after a room is unmapped.
	OnDestroy func(room *core.Room, reason string)
}

func (j *Janitor) Run(ctx context.Context) {
	if j.Interval <= 0 {
		return
	}
	ticker := j.Clock.NewTicker(j.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.janitor").Dur("interval", j.Interval).Dur("idle_timeout", j.IdleTimeout).Msg("janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.janitor").Msg("janitor stopped")
			return
		case <-ticker.Chan():
			j.Sweep()
		}
	}
}

// Sweep runs one collection pass and returns how many rooms it removed.
func (j *Janitor) Sweep() int {
	removed := 0
	for _, room := range j.Rooms.Rooms() {
		reason := ""
		_, err := room.Update(func(tx *core.Tx) {
			switch {
			case tx.Len() == 0:
				reason = ReasonEmpty
			case j.IdleTimeout > 0 && j.Clock.Since(tx.LastActive()) > j.IdleTimeout:
				reason = ReasonIdle
				tx.Broadcast(core.RoomClosed{Type: core.TypeRoomClosed, Reason: ReasonIdle})
				for _, b := range j.Registry.MembersOfRoom(room) {
					j.Registry.ClearRoom(b.Conn.ID(), room)
				}
			default:
				return
			}
			tx.Close()
		})
		if errors.Is(err, core.ErrRoomClosed) {
			// the teardown that closed it unmaps it
			continue
		}
		if reason == "" || !j.Rooms.Remove(room) {
			continue
		}
		removed++
		log.Info().Str("module", "app.janitor").Str("room", room.Code().String()).Str("reason", reason).Msg("room collected")
		if j.OnDestroy != nil {
			j.OnDestroy(room, reason)
		}
	}
	return removed
}
