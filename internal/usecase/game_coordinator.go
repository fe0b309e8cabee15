package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/scribbogame/scribbo-backend/internal/apperror"
	"github.com/scribbogame/scribbo-backend/internal/broadcast"
	"github.com/scribbogame/scribbo-backend/internal/entity"
	"github.com/scribbogame/scribbo-backend/internal/metrics"
	"github.com/scribbogame/scribbo-backend/internal/scribbo"
	"github.com/scribbogame/scribbo-backend/internal/session"
)

type gameRepo interface {
	Save(ctx context.Context, snapshot *entity.GameSnapshot) error
}

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	DeleteByID(ctx context.Context, id string) error
}

type dispatcher interface {
	Dispatch(payload any, excludeSessionID string)
}

// GameCoordinator routes client operations to the lock and capture rules and
// owns the single critical section around the game aggregate. Square
// transitions are O(1), so one mutex over the whole board keeps the protocol
// simple; no I/O happens while it is held, events and snapshots are handed
// off after the unlock.
type GameCoordinator struct {
	logger *slog.Logger

	mu   sync.Mutex
	game *entity.Game

	registry   *session.Manager
	dispatcher dispatcher
	gameRepo   gameRepo
	playerRepo playerRepo
	metrics    *metrics.Metrics
}

func NewGameCoordinator(
	logger *slog.Logger,
	game *entity.Game,
	registry *session.Manager,
	disp dispatcher,
	gameRepo gameRepo,
	playerRepo playerRepo,
	m *metrics.Metrics,
) *GameCoordinator {
	return &GameCoordinator{
		logger:     logger.With("component", "coordinator"),
		game:       game,
		registry:   registry,
		dispatcher: disp,
		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		metrics:    m,
	}
}

// Join - registers a new player for the session and announces them. The
// session becomes a broadcast target before the snapshot lock is released, so
// it cannot miss events that postdate its snapshot.
func (that *GameCoordinator) Join(ctx context.Context, sess *session.Session, name string) (*entity.Player, *entity.GameSnapshot, error) {
	log := that.logger.With("method", "Join")

	that.mu.Lock()

	player, err := that.game.AddPlayer(uuid.NewString(), name)
	if err != nil {
		that.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to add player: %w", err)
	}

	that.registry.Register(sess, player)
	totalPlayers := len(that.game.Players)
	snapshot := that.game.Snapshot()

	that.mu.Unlock()

	that.metrics.ConnectedPlayers.Inc()
	that.dispatcher.Dispatch(broadcast.NewPlayerJoined(player, totalPlayers), sess.ID)
	that.persist(ctx, snapshot)

	log.Info("player joined", "playerID", player.ID, "name", player.Name, "color", player.Color)

	return player, snapshot, nil
}

// StartDrawing - attempts the EMPTY -> LOCKED transition for the session's
// player. Exactly one of any number of concurrent callers on the same square
// succeeds.
func (that *GameCoordinator) StartDrawing(ctx context.Context, sess *session.Session, row, col int) error {
	player := sess.Player
	if player == nil {
		return apperror.ErrNotJoined
	}

	that.mu.Lock()

	if err := scribbo.StartDrawing(that.game, player.ID, row, col); err != nil {
		that.mu.Unlock()
		return err
	}

	snapshot := that.game.Snapshot()

	that.mu.Unlock()

	that.dispatcher.Dispatch(broadcast.NewSquareLocked(row, col, player.ID), sess.ID)
	that.persist(ctx, snapshot)

	return nil
}

// ForwardDrawing - passes stroke telemetry through to the other clients after
// checking the sender actually holds the square. Board state is untouched.
func (that *GameCoordinator) ForwardDrawing(_ context.Context, sess *session.Session, row, col int, points json.RawMessage) error {
	player := sess.Player
	if player == nil {
		return apperror.ErrNotJoined
	}

	that.mu.Lock()
	err := scribbo.ConfirmDrawing(that.game, player.ID, row, col)
	that.mu.Unlock()

	if err != nil {
		return err
	}

	that.dispatcher.Dispatch(broadcast.NewDrawingUpdate(row, col, player.ID, points), sess.ID)

	return nil
}

// FinishResult reports how a finish_drawing request resolved.
type FinishResult struct {
	Captured bool
	Finished bool
	Coverage float64
}

// FinishDrawing - resolves the attempt and broadcasts the outcome to all
// clients, the sender included. When the board fills up it finishes the game
// and emits the terminal event after the square resolution, preserving the
// lock -> resolve -> finish order for every observer.
func (that *GameCoordinator) FinishDrawing(ctx context.Context, sess *session.Session, row, col int, coverage float64) (*FinishResult, error) {
	log := that.logger.With("method", "FinishDrawing")

	player := sess.Player
	if player == nil {
		return nil, apperror.ErrNotJoined
	}

	that.mu.Lock()

	captured, err := scribbo.FinishDrawing(that.game, player.ID, row, col, coverage)
	if err != nil {
		that.mu.Unlock()
		return nil, err
	}

	finished := false
	if captured && that.game.Board.IsFull() {
		that.game.Finish()
		finished = true
	}

	snapshot := that.game.Snapshot()

	that.mu.Unlock()

	if captured {
		that.metrics.SquaresCaptured.Inc()
		that.dispatcher.Dispatch(broadcast.NewSquareCaptured(row, col, player.ID, coverage), "")
	} else {
		that.metrics.SquaresFailed.Inc()
		that.dispatcher.Dispatch(broadcast.NewSquareFailed(row, col, player.ID, coverage), "")
	}

	if finished {
		that.dispatcher.Dispatch(broadcast.NewGameFinished(snapshot), "")
		log.Info("game finished", "winners", snapshot.Winners)
	}

	that.persist(ctx, snapshot)

	return &FinishResult{Captured: captured, Finished: finished, Coverage: coverage}, nil
}

// GetState - the authoritative board and player snapshot.
func (that *GameCoordinator) GetState(_ context.Context) *entity.GameSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

// Disconnect - the guaranteed-cleanup path, run for graceful quits and abrupt
// socket failures alike: releases any held square locks (observable as
// square_failed), removes the player and announces their departure. Squares
// they captured stay theirs.
func (that *GameCoordinator) Disconnect(ctx context.Context, sessionID string) {
	log := that.logger.With("method", "Disconnect")

	player := that.registry.Unregister(sessionID)
	if player == nil {
		// The connection never joined; nothing to clean up.
		return
	}

	that.mu.Lock()

	released := scribbo.ReleaseLocks(that.game, player.ID)

	if _, err := that.game.RemovePlayer(player.ID); err != nil {
		log.Error("failed to remove player", "playerID", player.ID, "error", err)
	}

	snapshot := that.game.Snapshot()

	that.mu.Unlock()

	that.metrics.ConnectedPlayers.Dec()

	for _, square := range released {
		that.dispatcher.Dispatch(broadcast.NewSquareFailed(square.Row, square.Col, player.ID, 0), "")
	}
	that.dispatcher.Dispatch(broadcast.NewPlayerLeft(player, released), "")

	that.persist(ctx, snapshot)

	if err := that.playerRepo.DeleteByID(ctx, player.ID); err != nil {
		log.Error("failed to delete player", "playerID", player.ID, "error", err)
	}

	log.Info("player left", "playerID", player.ID, "name", player.Name, "freedSquares", len(released))
}

// persist - write-through snapshot of the game and its players. The in-memory
// aggregate remains the source of truth, so storage errors are logged, not
// propagated.
func (that *GameCoordinator) persist(ctx context.Context, snapshot *entity.GameSnapshot) {
	log := that.logger.With("method", "persist")

	if err := that.gameRepo.Save(ctx, snapshot); err != nil {
		log.Error("failed to save game snapshot", "error", err)
	}

	for _, player := range snapshot.Players {
		if err := that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
			log.Error("failed to save player", "playerID", player.ID, "error", err)
		}
	}
}
