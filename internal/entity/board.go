package entity

import (
	"fmt"

	"github.com/scribbogame/scribbo-backend/internal/apperror"
)

const BoardSize = 8

// Board is the fixed 8x8 grid of squares. It is plain data with invariant
// checks; callers are expected to serialize access (see usecase.GameCoordinator).
type Board struct {
	Squares [BoardSize][BoardSize]Square `json:"squares"`
}

func NewBoard() *Board {
	board := &Board{}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			board.Squares[row][col] = Square{
				Row:   row,
				Col:   col,
				State: SquareEmpty,
			}
		}
	}

	return board
}

// Get - returns the square at the given coordinates.
func (that *Board) Get(row, col int) (*Square, error) {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return nil, fmt.Errorf("%w: (%d, %d)", apperror.ErrInvalidSquare, row, col)
	}

	return &that.Squares[row][col], nil
}

// TrySetLocked - transitions the square EMPTY -> LOCKED for the given player.
// It is the sole entry point for that transition and reports whether it won;
// a false return means the square was not empty.
func (that *Board) TrySetLocked(row, col int, playerID string) bool {
	square, err := that.Get(row, col)
	if err != nil {
		return false
	}

	if !square.IsEmpty() {
		return false
	}

	square.State = SquareLocked
	square.LockedBy = playerID

	return true
}

// SetCaptured - transitions the square LOCKED -> CAPTURED for the player
// holding the lock. Captured squares never transition again.
func (that *Board) SetCaptured(row, col int, playerID string, coverage float64) error {
	square, err := that.Get(row, col)
	if err != nil {
		return err
	}

	if !square.IsLockedBy(playerID) {
		return fmt.Errorf("%w: square (%d, %d) is not locked by player %s", apperror.ErrInvalidTransition, row, col, playerID)
	}

	square.State = SquareCaptured
	square.OwnerID = playerID
	square.LockedBy = ""
	square.Coverage = coverage

	return nil
}

// SetFailed - returns a locked square to EMPTY after a failed attempt or a
// released lock. No partial credit persists.
func (that *Board) SetFailed(row, col int) error {
	square, err := that.Get(row, col)
	if err != nil {
		return err
	}

	if !square.IsLocked() {
		return fmt.Errorf("%w: square (%d, %d) is not locked", apperror.ErrInvalidTransition, row, col)
	}

	square.State = SquareEmpty
	square.LockedBy = ""
	square.Coverage = 0

	return nil
}

// IsFull - reports whether every square has been captured.
func (that *Board) IsFull() bool {
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			if !that.Squares[row][col].IsCaptured() {
				return false
			}
		}
	}

	return true
}

// CaptureCounts - recomputes the score of every owning player from the board.
func (that *Board) CaptureCounts() map[string]int {
	counts := make(map[string]int)

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			square := &that.Squares[row][col]
			if square.IsCaptured() {
				counts[square.OwnerID]++
			}
		}
	}

	return counts
}

// ReleaseLocksBy - returns every square locked by the player to EMPTY and
// reports which squares were freed. Used on disconnect and leave.
func (that *Board) ReleaseLocksBy(playerID string) []*Square {
	var released []*Square

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			square := &that.Squares[row][col]
			if square.IsLockedBy(playerID) {
				square.State = SquareEmpty
				square.LockedBy = ""
				square.Coverage = 0
				released = append(released, square)
			}
		}
	}

	return released
}
