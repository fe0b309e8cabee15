package apperror

import "errors"

var (
	ErrSquareLocked       = errors.New("square is locked by another player")
	ErrSquareCaptured     = errors.New("square is already captured")
	ErrNoActiveDrawing    = errors.New("no active drawing on this square")
	ErrInvalidSquare      = errors.New("invalid square coordinates")
	ErrInvalidCoverage    = errors.New("coverage must be between 0 and 100")
	ErrInvalidTransition  = errors.New("invalid square transition")
	ErrGameFull           = errors.New("game is full")
	ErrNameTaken          = errors.New("name is already taken")
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameIsNotStarted   = errors.New("game is not started")
	ErrNotJoined          = errors.New("player has not joined the game")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrUnknownMessageType = errors.New("unknown message type")
)
