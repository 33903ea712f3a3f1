package domain

import (
	"errors"
	"strings"
)

const MaxRoomCodeLen = 16

var ErrRoomCodeInvalid = errors.New("invalid room code")

type RoomCode string

// NormalizeRoomCode uppercases and trims a client supplied code.
func NormalizeRoomCode(raw string) (RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > MaxRoomCodeLen {
		return "", ErrRoomCodeInvalid
	}
	return RoomCode(code), nil
}

func (c RoomCode) String() string { return string(c) }
