package core

import (
	"bytes"
	"encoding/json"

	"github.com/dkeye/poker/internal/domain"
)

// DisplayVote is the broadcast-safe form of a vote: null when unset,
// true when cast but hidden, the raw token once revealed.
type DisplayVote struct {
	Hidden bool
	Value  domain.Vote
}

func (d DisplayVote) HasVoted() bool { return d.Hidden || d.Value.IsSet() }

func (d DisplayVote) MarshalJSON() ([]byte, error) {
	switch {
	case d.Hidden:
		return []byte("true"), nil
	case !d.Value.IsSet():
		return []byte("null"), nil
	}
	return json.Marshal(string(d.Value))
}

func (d *DisplayVote) UnmarshalJSON(b []byte) error {
	*d = DisplayVote{}
	switch string(bytes.TrimSpace(b)) {
	case "null":
		return nil
	case "true":
		d.Hidden = true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	d.Value = domain.Vote(s)
	return nil
}

type PlayerView struct {
	Name string      `json:"name"`
	Vote DisplayVote `json:"vote"`
}

// RoomState is the redacted snapshot broadcast to everyone in a room.
type RoomState struct {
	Type     string                 `json:"type"`
	Code     domain.RoomCode        `json:"code"`
	Admin    string                 `json:"admin"`
	Revealed bool                   `json:"revealed"`
	Players  []PlayerView           `json:"players"`
	Votes    map[string]domain.Vote `json:"votes"`
	Average  *float64               `json:"average,omitempty"`
}

// RoomInfo is a read-only directory listing entry.
type RoomInfo struct {
	Code         domain.RoomCode `json:"code"`
	Admin        string          `json:"admin"`
	Participants int             `json:"participants"`
	Revealed     bool            `json:"revealed"`
}
