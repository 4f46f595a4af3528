package room

import "errors"

var (
	ErrUnknownTarget = errors.New("unknown target")
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrNoHealth      = errors.New("not enough health")
	ErrRoomMismatch  = errors.New("snapshot belongs to a different room")
	ErrUnknownFormat = errors.New("unknown room file format")
	ErrNotFound      = errors.New("room not found")

	// ErrIgnored marks an event the room accepted but had no reaction to.
	ErrIgnored = errors.New("event ignored")
)
