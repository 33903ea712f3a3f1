package app

import (
	"context"
	"sync"

	"github.com/dkeye/poker/internal/core"
	"github.com/rs/zerolog/log"
)

// Binding is what a connection is currently joined as.
type Binding struct {
	Conn core.SignalConnection
	Room *core.Room
	Name string
}

type sessionEntry struct {
	Binding
	ClientToken string
	Cancel      context.CancelFunc
}

// Registry maps live connections to the room and name they joined with.
// A connection is bound to at most one room.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.ConnID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.ConnID]*sessionEntry),
	}
}

func (r *Registry) BindSignal(conn core.SignalConnection, clientToken string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn.ID()] = &sessionEntry{
		Binding:     Binding{Conn: conn},
		ClientToken: clientToken,
		Cancel:      cancel,
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn.ID())).Str("client", clientToken).Msg("bound signal")
}

// BindRoom records that the connection joined room as name.
func (r *Registry) BindRoom(id core.ConnID, room *core.Room, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	e.Room = room
	e.Name = name
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", room.Code().String()).Str("name", name).Msg("bound room")
	return true
}

// Binding returns the room binding of a connection; ok is false when the
// connection is unknown or not in a room.
func (r *Registry) Binding(id core.ConnID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok || e.Room == nil {
		return Binding{}, false
	}
	return e.Binding, true
}

func (r *Registry) GetSession(id core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// ClearRoom drops the room association if it still points at room.
func (r *Registry) ClearRoom(id core.ConnID, room *core.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.Room != room {
		return false
	}
	e.Room = nil
	e.Name = ""
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", room.Code().String()).Msg("removed room association")
	return true
}

func (r *Registry) Unbind(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind session")
}

// Cancel stops the connection's pumps; false if it has no cancel func.
func (r *Registry) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || e.Cancel == nil {
		return false
	}
	e.Cancel()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled session")
	return true
}

// MembersOfRoom lists the connections bound to room.
func (r *Registry) MembersOfRoom(room *core.Room) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0)
	for _, e := range r.sessions {
		if e.Room == room {
			out = append(out, e.Binding)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
