package room

import "errors"

var (
	ErrNotSeated      = errors.New("not in this room")
	ErrAlreadySeated  = errors.New("already in this room")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrRoomClosed     = errors.New("room is closed")
	ErrNotHost        = errors.New("only the host can do that")
	ErrSeatCount      = errors.New("a game needs exactly 2 or 4 players")
	ErrNotStarted     = errors.New("game is not in progress")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrPieceNotInHand = errors.New("you do not hold that piece")
	ErrKickSelf       = errors.New("you cannot kick yourself")
)
