package scribbo

import (
	"fmt"

	"github.com/scribbogame/scribbo-backend/internal/apperror"
	"github.com/scribbogame/scribbo-backend/internal/entity"
)

// MinCoverage is the fraction of a square that must be colored for a capture.
// Exactly 50.0 counts as captured.
const MinCoverage = 50.0

// StartDrawing - grants the player exclusive drawing rights on the square.
// Only an EMPTY square can be locked; the caller serializes concurrent
// requests, so at most one of them observes the EMPTY state.
func StartDrawing(gameInstance *entity.Game, playerID string, row, col int) error {
	if err := gameInstance.ConfirmOngoingState(); err != nil {
		return err
	}

	square, err := gameInstance.Board.Get(row, col)
	if err != nil {
		return err
	}

	if square.IsCaptured() {
		return fmt.Errorf("%w: owned by %s", apperror.ErrSquareCaptured, ownerName(gameInstance, square.OwnerID))
	}

	if square.IsLockedBy(playerID) {
		// The player already holds this square; treat the repeat as a no-op.
		return nil
	}

	if square.IsLocked() {
		return fmt.Errorf("%w: held by %s", apperror.ErrSquareLocked, ownerName(gameInstance, square.LockedBy))
	}

	if !gameInstance.Board.TrySetLocked(row, col, playerID) {
		return fmt.Errorf("%w: held by %s", apperror.ErrSquareLocked, square.LockedBy)
	}

	return nil
}

// FinishDrawing - resolves the player's drawing attempt on a square they hold.
// Coverage at or above MinCoverage captures the square for good; anything less
// returns it to EMPTY with no partial credit. The reported capture flag tells
// the caller which of the two happened.
func FinishDrawing(gameInstance *entity.Game, playerID string, row, col int, coverage float64) (bool, error) {
	if err := gameInstance.ConfirmOngoingState(); err != nil {
		return false, err
	}

	square, err := gameInstance.Board.Get(row, col)
	if err != nil {
		return false, err
	}

	if !square.IsLockedBy(playerID) {
		return false, fmt.Errorf("%w: square (%d, %d)", apperror.ErrNoActiveDrawing, row, col)
	}

	// Out-of-range coverage is a protocol violation, rejected before any
	// mutation; the player keeps the lock and may retry the finish.
	if coverage < 0 || coverage > 100 {
		return false, fmt.Errorf("%w: got %.1f", apperror.ErrInvalidCoverage, coverage)
	}

	if coverage < MinCoverage {
		if err = gameInstance.Board.SetFailed(row, col); err != nil {
			return false, fmt.Errorf("failed to release square: %w", err)
		}

		return false, nil
	}

	if err = gameInstance.Board.SetCaptured(row, col, playerID, coverage); err != nil {
		return false, fmt.Errorf("failed to capture square: %w", err)
	}

	gameInstance.SyncScores()

	return true, nil
}

// ConfirmDrawing - checks that the player holds the square mid-draw. Used for
// the drawing_data pass-through, which never mutates board state.
func ConfirmDrawing(gameInstance *entity.Game, playerID string, row, col int) error {
	square, err := gameInstance.Board.Get(row, col)
	if err != nil {
		return err
	}

	if !square.IsLockedBy(playerID) {
		return fmt.Errorf("%w: square (%d, %d)", apperror.ErrNoActiveDrawing, row, col)
	}

	return nil
}

// ReleaseLocks - frees every square the player holds mid-draw. This is the
// guaranteed-release path used on disconnect and leave.
func ReleaseLocks(gameInstance *entity.Game, playerID string) []*entity.Square {
	return gameInstance.Board.ReleaseLocksBy(playerID)
}

func ownerName(gameInstance *entity.Game, playerID string) string {
	if player, err := gameInstance.GetPlayer(playerID); err == nil {
		return player.Name
	}

	return playerID
}
