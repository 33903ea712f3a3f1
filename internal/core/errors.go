package core

import "errors"

var (
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room does not exist")
	ErrRoomClosed      = errors.New("room closed")
	ErrAdminName       = errors.New("name belongs to the room admin")
	ErrVotesIncomplete = errors.New("not everyone has voted")
	ErrNotAdmin        = errors.New("only the room admin may do that")
)
