package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/poker/internal/app/orch"
	"github.com/dkeye/poker/internal/domain"
)

type votePayload struct {
	RoomCode string          `json:"roomCode"`
	Vote     json.RawMessage `json:"vote"`
}

func (ctl *SignalWSController) handleVote(conn *WsSignalConn, data []byte) {
	var p votePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	v, err := parseVote(p.Vote)
	if err != nil {
		ctl.Orch.Reject(conn, err)
		return
	}
	ctl.Orch.Vote(conn, p.RoomCode, v)
}

func (ctl *SignalWSController) handleReveal(conn *WsSignalConn, data []byte) {
	var p codePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Orch.Reveal(conn, p.RoomCode)
}

func (ctl *SignalWSController) handleReset(conn *WsSignalConn, data []byte) {
	var p codePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Orch.Reset(conn, p.RoomCode)
}

// parseVote accepts null, a string token or a JSON number, which is kept
// in its literal form.
func parseVote(raw json.RawMessage) (domain.Vote, error) {
	if len(raw) == 0 {
		return domain.NoVote, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return domain.NoVote, fmt.Errorf("%w: %v", orch.ErrMalformed, err)
	}
	switch x := v.(type) {
	case nil:
		return domain.NoVote, nil
	case string:
		return domain.Vote(x), nil
	case json.Number:
		return domain.Vote(x.String()), nil
	}
	return domain.NoVote, fmt.Errorf("%w: vote must be null, a string or a number", orch.ErrMalformed)
}
