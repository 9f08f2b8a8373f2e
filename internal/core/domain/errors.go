package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrProducerExists = errors.New("room already has a producer")
	ErrPeerNotFound   = errors.New("target peer not found")
	ErrNotAMember     = errors.New("participant is not a member of this room")
	ErrInvalidRole    = errors.New("invalid participant role")
	ErrAlreadyJoined  = errors.New("participant already joined this room")
)
