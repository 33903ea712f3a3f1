package orch

import (
	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/domain"
	"github.com/dkeye/poker/internal/events"
)

// Vote records the caller's estimate. Votes are ignored while the cards
// are revealed.
func (o *Orchestrator) Vote(conn core.SignalConnection, rawCode string, vote domain.Vote) {
	o.Metrics.Intent("vote")
	room, ok := o.boundRoom(conn, rawCode)
	if !ok {
		return
	}
	var voter string
	res, err := room.Update(func(tx *core.Tx) {
		name, ok := tx.NameOf(conn)
		if !ok || tx.Revealed() || !tx.SetVote(name, vote) {
			return
		}
		voter = name
		tx.BroadcastState()
	})
	if err != nil || voter == "" {
		return
	}
	o.settle(room, res)
	o.publish(withParticipant(events.New(events.VoteCast, room.Code()), voter))
}

// Reveal shows every vote. Non-admin callers are ignored.
func (o *Orchestrator) Reveal(conn core.SignalConnection, rawCode string) {
	o.Metrics.Intent("revealCards")
	room, ok := o.boundRoom(conn, rawCode)
	if !ok {
		return
	}
	var (
		votes      map[string]domain.Vote
		incomplete bool
	)
	res, err := room.Update(func(tx *core.Tx) {
		if !o.callerIsAdmin(tx, conn) {
			return
		}
		v, ok := tx.Reveal()
		if !ok {
			incomplete = true
			return
		}
		votes = v
		tx.BroadcastState()
		tx.Broadcast(core.CardsRevealed{Type: core.TypeCardsRevealed, Votes: v})
	})
	if err != nil {
		return
	}
	if incomplete {
		o.Reject(conn, core.ErrVotesIncomplete)
		return
	}
	if votes == nil {
		return
	}
	o.settle(room, res)
	ev := events.New(events.CardsRevealed, room.Code())
	ev.Votes = votes
	o.publish(ev)
}

// Reset starts a new round. Non-admin callers are ignored.
func (o *Orchestrator) Reset(conn core.SignalConnection, rawCode string) {
	o.Metrics.Intent("resetRoom")
	room, ok := o.boundRoom(conn, rawCode)
	if !ok {
		return
	}
	done := false
	res, err := room.Update(func(tx *core.Tx) {
		if !o.callerIsAdmin(tx, conn) {
			return
		}
		tx.Reset()
		done = true
		tx.BroadcastState()
		tx.Broadcast(core.Notice{Type: core.TypeRoomReset})
	})
	if err != nil || !done {
		return
	}
	o.settle(room, res)
	o.publish(events.New(events.RoomReset, room.Code()))
}

func (o *Orchestrator) callerIsAdmin(tx *core.Tx, conn core.SignalConnection) bool {
	name, ok := tx.NameOf(conn)
	if ok && tx.IsAdmin(name) {
		return true
	}
	o.ignore(conn, core.ErrNotAdmin)
	return false
}
