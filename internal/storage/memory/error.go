package memory

import "errors"

var (
	ErrDuplicateSession = errors.New("session already exists")
	ErrRoomNotFound     = errors.New("room not found")
)
