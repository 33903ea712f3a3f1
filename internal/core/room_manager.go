package core

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/poker/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLen is the length of generated room codes.
const CodeLen = 6

// Directory maps room codes to rooms. Its lock only guards the map;
// rooms serialize their own state.
type Directory struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Room
}

func NewDirectory(clock clockwork.Clock) *Directory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Directory{clock: clock, rooms: make(map[domain.RoomCode]*Room)}
}

// Create registers a room whose sole participant is the admin bound to conn.
func (d *Directory) Create(code domain.RoomCode, admin string, conn SignalConnection, policy RevealPolicy) (*Room, error) {
	room, _, err := d.CreateWith(code, admin, conn, policy, nil)
	return room, err
}

// CreateWith is Create with init run under the new room's lock before the
// room becomes visible to Get, so nothing can reach the room ahead of it.
func (d *Directory) CreateWith(code domain.RoomCode, admin string, conn SignalConnection, policy RevealPolicy, init func(tx *Tx)) (*Room, PublishResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[code]; ok {
		return nil, PublishResult{}, fmt.Errorf("create %s: %w", code, ErrRoomExists)
	}
	room := newRoom(code, admin, conn, policy, d.clock)
	var res PublishResult
	if init != nil {
		res, _ = room.Update(init)
	}
	d.rooms[code] = room
	log.Info().Str("module", "core.directory").Str("room", code.String()).Str("admin", admin).Int("rooms", len(d.rooms)).Msg("room created")
	return room, res, nil
}

func (d *Directory) Get(code domain.RoomCode) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[code]
	return room, ok
}

// Destroy unmaps code and closes its room. Unknown codes are ignored.
func (d *Directory) Destroy(code domain.RoomCode) {
	d.mu.Lock()
	room, ok := d.rooms[code]
	delete(d.rooms, code)
	d.mu.Unlock()
	if !ok {
		return
	}
	room.close()
	log.Info().Str("module", "core.directory").Str("room", code.String()).Msg("room destroyed")
}

// Remove unmaps room only if it is still the room registered under its
// code.
func (d *Directory) Remove(room *Room) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.rooms[room.code]; !ok || cur != room {
		return false
	}
	delete(d.rooms, room.code)
	log.Info().Str("module", "core.directory").Str("room", room.code.String()).Int("rooms", len(d.rooms)).Msg("room removed")
	return true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Rooms returns the registered rooms ordered by code.
func (d *Directory) Rooms() []*Room {
	d.mu.RLock()
	out := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

func (d *Directory) List() []RoomInfo {
	rooms := d.Rooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// NewCode generates a random code that is not in use right now.
func (d *Directory) NewCode() domain.RoomCode {
	for {
		buf := make([]byte, CodeLen)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := domain.RoomCode(buf)
		if _, exists := d.Get(code); !exists {
			return code
		}
	}
}
