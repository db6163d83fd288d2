package core

import "errors"

var (
	// ErrRoomFull rejects a join into a room at max_participants.
	ErrRoomFull = errors.New("room is full")
	// ErrDuplicateID rejects a join reusing an id already in the room.
	ErrDuplicateID = errors.New("participant id already in room")
	// ErrRoomClosed is returned when a join races the idle sweep; the
	// caller re-creates the room and retries.
	ErrRoomClosed = errors.New("room closed")
	// ErrNotInRoom marks operations addressed to an unknown participant.
	ErrNotInRoom = errors.New("participant not in room")
	// ErrScreenShareBusy rejects a second concurrent screen-sharer.
	ErrScreenShareBusy = errors.New("another participant is screen sharing")
	// ErrNegotiation wraps engine failures while applying an offer.
	ErrNegotiation = errors.New("negotiation failed")
	// ErrInvalidTransition reports a peer session state machine violation.
	ErrInvalidTransition = errors.New("invalid session state transition")
)
