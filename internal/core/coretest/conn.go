// Package coretest provides an in-memory core.SignalConnection for tests.
package coretest

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/poker/internal/core"
)

var ErrFull = errors.New("queue full")

// Conn records every frame queued to it.
type Conn struct {
	id core.ConnID

	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func NewConn(id string) *Conn {
	return &Conn{id: core.ConnID(id)}
}

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	if c.full {
		return ErrFull
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetFull makes TrySend fail as if the peer were too slow.
func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

// Clear forgets recorded frames.
func (c *Conn) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Types returns the "type" field of every recorded frame in order.
func (c *Conn) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

// Last decodes the most recent frame of the given type into v.
func (c *Conn) Last(t testing.TB, typ string, v any) bool {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(c.frames[i], &env); err != nil || env.Type != typ {
			continue
		}
		if err := json.Unmarshal(c.frames[i], v); err != nil {
			t.Fatalf("decode %s: %v", typ, err)
		}
		return true
	}
	return false
}

// Raw returns the most recent frame of the given type.
func (c *Conn) Raw(typ string) (core.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(c.frames[i], &env); err == nil && env.Type == typ {
			return c.frames[i], true
		}
	}
	return nil, false
}
