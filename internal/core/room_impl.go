package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/poker/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type RevealPolicy int

const (
	// RevealStrict refuses to reveal while any voter has not voted.
	RevealStrict RevealPolicy = iota
	// RevealBackfill fills missing votes with domain.Unsure and always reveals.
	RevealBackfill
)

func ParseRevealPolicy(s string) (RevealPolicy, error) {
	switch s {
	case "", "strict":
		return RevealStrict, nil
	case "backfill":
		return RevealBackfill, nil
	}
	return RevealStrict, fmt.Errorf("unknown reveal policy %q", s)
}

func (p RevealPolicy) String() string {
	if p == RevealBackfill {
		return "backfill"
	}
	return "strict"
}

type seat struct {
	domain.Participant
	conn SignalConnection
}

// Room is one voting session. Its mutable state is only reachable
// through Update, which runs the callback under the room mutex.
// It never closes adapter-owned resources.
type Room struct {
	code   domain.RoomCode
	admin  string
	policy RevealPolicy
	clock  clockwork.Clock

	mu         sync.Mutex
	seats      []*seat
	revealed   bool
	closed     bool
	lastActive time.Time
}

func newRoom(code domain.RoomCode, admin string, conn SignalConnection, policy RevealPolicy, clock clockwork.Clock) *Room {
	r := &Room{
		code:       code,
		admin:      admin,
		policy:     policy,
		clock:      clock,
		lastActive: clock.Now(),
	}
	r.seats = append(r.seats, &seat{Participant: *domain.NewParticipant(admin), conn: conn})
	return r
}

func (r *Room) Code() domain.RoomCode { return r.code }
func (r *Room) Admin() string         { return r.admin }

// Update runs fn with exclusive access to the room. Messages queued by fn
// are fanned out before the lock is released, so peers observe them in
// mutation order.
func (r *Room) Update(fn func(tx *Tx)) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return PublishResult{}, ErrRoomClosed
	}
	tx := &Tx{room: r}
	fn(tx)
	if tx.mutated {
		r.lastActive = r.clock.Now()
	}
	return tx.result, nil
}

// Snapshot returns the redacted state without mutating anything.
func (r *Room) Snapshot() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{Code: r.code, Admin: r.admin, Participants: len(r.seats), Revealed: r.revealed}
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Room) find(name string) *seat {
	for _, s := range r.seats {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (r *Room) snapshotLocked() RoomState {
	st := RoomState{
		Type:     TypeRoomState,
		Code:     r.code,
		Admin:    r.admin,
		Revealed: r.revealed,
		Players:  make([]PlayerView, 0, len(r.seats)),
	}
	for _, s := range r.seats {
		dv := DisplayVote{}
		switch {
		case r.revealed:
			dv.Value = s.Vote
		case s.Vote.IsSet():
			dv.Hidden = true
		}
		st.Players = append(st.Players, PlayerView{Name: s.Name, Vote: dv})
	}
	if r.revealed {
		st.Votes = r.votesLocked()
		if avg, ok := domain.Average(st.Votes); ok {
			st.Average = &avg
		}
	}
	return st
}

func (r *Room) votesLocked() map[string]domain.Vote {
	votes := make(map[string]domain.Vote, len(r.seats))
	for _, s := range r.seats {
		if s.Name == r.admin {
			continue
		}
		votes[s.Name] = s.Vote
	}
	return votes
}

// Tx is the room contract available inside Update. It must not escape
// the callback.
type Tx struct {
	room    *Room
	result  PublishResult
	mutated bool
}

// Room is the room being updated.
func (tx *Tx) Room() *Room { return tx.room }

func (tx *Tx) Code() domain.RoomCode { return tx.room.code }
func (tx *Tx) Admin() string         { return tx.room.admin }
func (tx *Tx) Revealed() bool        { return tx.room.revealed }
func (tx *Tx) Len() int              { return len(tx.room.seats) }
func (tx *Tx) LastActive() time.Time { return tx.room.lastActive }
func (tx *Tx) IsAdmin(name string) bool {
	return name == tx.room.admin
}

// AddOrRebind appends a new participant, or moves an existing one onto
// conn. On rebind the previously bound connection is returned.
func (tx *Tx) AddOrRebind(name string, conn SignalConnection) (prev SignalConnection, rebound bool) {
	r := tx.room
	tx.mutated = true
	if s := r.find(name); s != nil {
		prev = s.conn
		s.conn = conn
		log.Info().Str("module", "core.room").Str("room", r.code.String()).Str("name", name).Msg("participant rebound")
		return prev, true
	}
	r.seats = append(r.seats, &seat{Participant: *domain.NewParticipant(name), conn: conn})
	log.Info().Str("module", "core.room").Str("room", r.code.String()).Str("name", name).Msg("participant added")
	return nil, false
}

// RemoveByConnection drops the participant bound to conn. Calling it for
// a connection that is no longer bound is a no-op.
func (tx *Tx) RemoveByConnection(conn SignalConnection) (removed, wasAdmin bool) {
	if conn == nil {
		return false, false
	}
	r := tx.room
	for i, s := range r.seats {
		if s.conn == nil || s.conn.ID() != conn.ID() {
			continue
		}
		r.seats = append(r.seats[:i], r.seats[i+1:]...)
		tx.mutated = true
		log.Info().Str("module", "core.room").Str("room", r.code.String()).Str("name", s.Name).Msg("participant removed")
		return true, s.Name == r.admin
	}
	return false, false
}

// NameOf reports which participant conn is bound to.
func (tx *Tx) NameOf(conn SignalConnection) (string, bool) {
	for _, s := range tx.room.seats {
		if s.conn != nil && s.conn.ID() == conn.ID() {
			return s.Name, true
		}
	}
	return "", false
}

func (tx *Tx) SetVote(name string, v domain.Vote) bool {
	r := tx.room
	if name == r.admin {
		return false
	}
	s := r.find(name)
	if s == nil {
		return false
	}
	s.Vote = v
	tx.mutated = true
	return true
}

// Reveal flips the room to revealed and returns every voter's vote. Under
// RevealStrict it refuses (ok == false) while any voter is missing a vote.
func (tx *Tx) Reveal() (votes map[string]domain.Vote, ok bool) {
	r := tx.room
	for _, s := range r.seats {
		if s.Name == r.admin || s.Vote.IsSet() {
			continue
		}
		if r.policy != RevealBackfill {
			return nil, false
		}
		s.Vote = domain.Unsure
	}
	r.revealed = true
	tx.mutated = true
	return r.votesLocked(), true
}

func (tx *Tx) Reset() {
	r := tx.room
	tx.mutated = true
	r.revealed = false
	for _, s := range r.seats {
		s.Vote = domain.NoVote
	}
}

func (tx *Tx) Snapshot() RoomState { return tx.room.snapshotLocked() }

// Close destroys the room; every later Update fails with ErrRoomClosed.
func (tx *Tx) Close() {
	tx.room.closed = true
	tx.mutated = true
}

// Send queues v for a single connection.
func (tx *Tx) Send(conn SignalConnection, v any) {
	if conn == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("marshal")
		return
	}
	tx.deliver(conn, b)
}

// Broadcast queues v for every connection in the room.
func (tx *Tx) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("marshal")
		return
	}
	for _, s := range tx.room.seats {
		if s.conn != nil {
			tx.deliver(s.conn, b)
		}
	}
	log.Debug().Str("module", "core.room").Str("room", tx.room.code.String()).Int("sent_to", tx.result.SendTo).Int("dropped", len(tx.result.Dropped)).Msg("broadcast result")
}

func (tx *Tx) BroadcastState() { tx.Broadcast(tx.Snapshot()) }

func (tx *Tx) deliver(conn SignalConnection, b Frame) {
	if err := conn.TrySend(b); err != nil {
		tx.result.Dropped = append(tx.result.Dropped, conn)
		return
	}
	tx.result.SendTo++
}
