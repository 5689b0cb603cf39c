package tzroom

import "errors"

var (
	ErrInvalidName           = errors.New("invalid room name")
	ErrNameTaken             = errors.New("room name already taken")
	ErrRoomNotFound          = errors.New("room not found")
	ErrAlreadyInRoom         = errors.New("already in room")
	ErrNotInRoom             = errors.New("not in a room")
	ErrTimeSourceUnavailable = errors.New("time source unavailable")
)
