package app

import (
	"fmt"

	"github.com/dkeye/poker/internal/core"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a peer whose send queue was full.
type Policy interface {
	OnBackPressure(room *core.Room, conn core.SignalConnection) BackpressureAction
}

// DropPolicy keeps the peer and loses the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(*core.Room, core.SignalConnection) BackpressureAction {
	return DropFrame
}

// KickPolicy disconnects the peer; it rejoins with a fresh snapshot.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(*core.Room, core.SignalConnection) BackpressureAction {
	return KickMember
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
