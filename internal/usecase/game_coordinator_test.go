package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scribbogame/scribbo-backend/internal/apperror"
	"github.com/scribbogame/scribbo-backend/internal/broadcast"
	"github.com/scribbogame/scribbo-backend/internal/entity"
	"github.com/scribbogame/scribbo-backend/internal/metrics"
	"github.com/scribbogame/scribbo-backend/internal/scribbo"
	"github.com/scribbogame/scribbo-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchCall struct {
	payload any
	exclude string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (that *fakeDispatcher) Dispatch(payload any, excludeSessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls = append(that.calls, dispatchCall{payload: payload, exclude: excludeSessionID})
}

func (that *fakeDispatcher) Calls() []dispatchCall {
	that.mu.Lock()
	defer that.mu.Unlock()

	calls := make([]dispatchCall, len(that.calls))
	copy(calls, that.calls)

	return calls
}

func (that *fakeDispatcher) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls = nil
}

type fakeGameRepo struct {
	mu    sync.Mutex
	saved []*entity.GameSnapshot
}

func (that *fakeGameRepo) Save(_ context.Context, snapshot *entity.GameSnapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.saved = append(that.saved, snapshot)

	return nil
}

type fakePlayerRepo struct {
	mu      sync.Mutex
	deleted []string
}

func (that *fakePlayerRepo) CreateOrUpdate(_ context.Context, _ *entity.Player) error {
	return nil
}

func (that *fakePlayerRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.deleted = append(that.deleted, id)

	return nil
}

type coordinatorFixture struct {
	coordinator *GameCoordinator
	game        *entity.Game
	registry    *session.Manager
	dispatcher  *fakeDispatcher
	playerRepo  *fakePlayerRepo
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	game := entity.NewGame("game-test")
	registry := session.NewManager()
	disp := &fakeDispatcher{}
	gameRepo := &fakeGameRepo{}
	playerRepo := &fakePlayerRepo{}
	m := metrics.New("test", prometheus.NewRegistry())

	return &coordinatorFixture{
		coordinator: NewGameCoordinator(logger, game, registry, disp, gameRepo, playerRepo, m),
		game:        game,
		registry:    registry,
		dispatcher:  disp,
		playerRepo:  playerRepo,
	}
}

func (that *coordinatorFixture) join(t *testing.T, name string) (*session.Session, *entity.Player) {
	t.Helper()

	sess := session.NewSession("sess-" + name)

	player, _, err := that.coordinator.Join(context.Background(), sess, name)
	require.NoError(t, err)

	return sess, player
}

func TestGameCoordinator_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("Join_Success", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)

		// Given: an empty game and a fresh session
		sess := session.NewSession("sess-1")

		// When: the session joins as alice
		player, snapshot, err := fixture.coordinator.Join(ctx, sess, "alice")

		// Then: the player gets the first free color and the snapshot shows them
		require.NoError(t, err)
		assert.NotEmpty(t, player.ID)
		assert.Equal(t, "red", player.Color)
		assert.Equal(t, entity.StatusOngoing, snapshot.Status)
		require.Len(t, snapshot.Players, 1)

		// Then: player_joined is broadcast, excluding the joiner
		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 1)
		joined, ok := calls[0].payload.(broadcast.PlayerJoined)
		require.True(t, ok)
		assert.Equal(t, player.ID, joined.PlayerID)
		assert.Equal(t, 1, joined.TotalPlayers)
		assert.Equal(t, sess.ID, calls[0].exclude)

		// Then: the session is bound to the player
		found, ok := fixture.registry.GetByPlayerID(player.ID)
		require.True(t, ok)
		assert.Equal(t, sess.ID, found.ID)
	})

	t.Run("Join_NameTaken", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		fixture.join(t, "alice")

		// When: a second session joins under the same display name
		_, _, err := fixture.coordinator.Join(ctx, session.NewSession("sess-2"), "alice")

		// Then: the join is rejected
		assert.ErrorIs(t, err, apperror.ErrNameTaken)
	})

	t.Run("Join_GameFull", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)

		// Given: a game at the player cap
		for i := 0; i < entity.MaxPlayers; i++ {
			fixture.join(t, fmt.Sprintf("player-%d", i))
		}

		// When: one more session tries to join
		_, _, err := fixture.coordinator.Join(ctx, session.NewSession("sess-extra"), "latecomer")

		// Then: the join is rejected and the roster is unchanged
		assert.ErrorIs(t, err, apperror.ErrGameFull)
		assert.Equal(t, entity.MaxPlayers, fixture.registry.Count())
	})
}

func TestGameCoordinator_StartDrawing(t *testing.T) {
	ctx := context.Background()

	t.Run("StartDrawing_Success", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, player := fixture.join(t, "alice")
		fixture.dispatcher.Reset()

		// When: the player starts drawing on an empty square
		err := fixture.coordinator.StartDrawing(ctx, sess, 2, 3)

		// Then: square_locked is broadcast to everyone else
		require.NoError(t, err)
		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 1)
		locked, ok := calls[0].payload.(broadcast.SquareLocked)
		require.True(t, ok)
		assert.Equal(t, player.ID, locked.PlayerID)
		assert.Equal(t, sess.ID, calls[0].exclude)
	})

	t.Run("StartDrawing_NotJoined", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		fixture.join(t, "alice")

		// When: a session that never joined starts drawing
		err := fixture.coordinator.StartDrawing(ctx, session.NewSession("sess-anon"), 0, 0)

		// Then: the request is rejected
		assert.ErrorIs(t, err, apperror.ErrNotJoined)
	})

	t.Run("StartDrawing_HeldByOther", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sessA, _ := fixture.join(t, "alice")
		sessB, _ := fixture.join(t, "bob")
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sessA, 0, 0))
		fixture.dispatcher.Reset()

		// When: bob tries the square alice holds
		err := fixture.coordinator.StartDrawing(ctx, sessB, 0, 0)

		// Then: the attempt is rejected and nothing is broadcast
		assert.ErrorIs(t, err, apperror.ErrSquareLocked)
		assert.Empty(t, fixture.dispatcher.Calls())
	})
}

func TestGameCoordinator_StartDrawing_Concurrent(t *testing.T) {
	ctx := context.Background()

	fixture := newCoordinatorFixture(t)

	// Given: eight players all targeting the same square
	sessions := make([]*session.Session, entity.MaxPlayers)
	for i := range sessions {
		sessions[i], _ = fixture.join(t, fmt.Sprintf("player-%d", i))
	}
	fixture.dispatcher.Reset()

	// When: all of them race StartDrawing on (4, 4)
	errs := make([]error, len(sessions))

	var wg sync.WaitGroup
	for i, sess := range sessions {
		wg.Add(1)
		go func(i int, sess *session.Session) {
			defer wg.Done()
			errs[i] = fixture.coordinator.StartDrawing(ctx, sess, 4, 4)
		}(i, sess)
	}
	wg.Wait()

	// Then: exactly one wins the lock, everyone else is refused
	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, apperror.ErrSquareLocked)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Len(t, fixture.dispatcher.Calls(), 1)
}

func TestGameCoordinator_ForwardDrawing(t *testing.T) {
	ctx := context.Background()
	points := json.RawMessage(`[{"x":1,"y":2}]`)

	t.Run("ForwardDrawing_Success", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, player := fixture.join(t, "alice")
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 1, 1))
		fixture.dispatcher.Reset()

		// When: the lock holder streams stroke points
		err := fixture.coordinator.ForwardDrawing(ctx, sess, 1, 1, points)

		// Then: drawing_update is relayed to the other clients
		require.NoError(t, err)
		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 1)
		update, ok := calls[0].payload.(broadcast.DrawingUpdate)
		require.True(t, ok)
		assert.Equal(t, player.ID, update.PlayerID)
		assert.Equal(t, sess.ID, calls[0].exclude)
	})

	t.Run("ForwardDrawing_WithoutLock", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, _ := fixture.join(t, "alice")
		fixture.dispatcher.Reset()

		// When: stroke points arrive for a square the sender does not hold
		err := fixture.coordinator.ForwardDrawing(ctx, sess, 1, 1, points)

		// Then: the update is rejected and not relayed
		assert.ErrorIs(t, err, apperror.ErrNoActiveDrawing)
		assert.Empty(t, fixture.dispatcher.Calls())
	})
}

func TestGameCoordinator_FinishDrawing(t *testing.T) {
	ctx := context.Background()

	t.Run("FinishDrawing_Captured", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, player := fixture.join(t, "alice")
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 0, 0))
		fixture.dispatcher.Reset()

		// When: the player finishes with coverage above the threshold
		result, err := fixture.coordinator.FinishDrawing(ctx, sess, 0, 0, 75)

		// Then: the square is captured and announced to everyone, sender included
		require.NoError(t, err)
		assert.True(t, result.Captured)
		assert.False(t, result.Finished)

		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 1)
		captured, ok := calls[0].payload.(broadcast.SquareCaptured)
		require.True(t, ok)
		assert.Equal(t, player.ID, captured.PlayerID)
		assert.Empty(t, calls[0].exclude)
	})

	t.Run("FinishDrawing_BelowThreshold", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, _ := fixture.join(t, "alice")
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 0, 0))
		fixture.dispatcher.Reset()

		// When: the player finishes below the threshold
		result, err := fixture.coordinator.FinishDrawing(ctx, sess, 0, 0, 40)

		// Then: the square fails back to empty and can be locked again
		require.NoError(t, err)
		assert.False(t, result.Captured)

		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 1)
		_, ok := calls[0].payload.(broadcast.SquareFailed)
		require.True(t, ok)

		assert.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 0, 0))
	})

	t.Run("FinishDrawing_InvalidCoverage", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, _ := fixture.join(t, "alice")
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 0, 0))
		fixture.dispatcher.Reset()

		// When: the reported coverage is out of range
		_, err := fixture.coordinator.FinishDrawing(ctx, sess, 0, 0, 150)

		// Then: the request is rejected, the lock stays held and nothing is broadcast
		assert.ErrorIs(t, err, apperror.ErrInvalidCoverage)
		assert.Empty(t, fixture.dispatcher.Calls())

		square, getErr := fixture.game.Board.Get(0, 0)
		require.NoError(t, getErr)
		assert.True(t, square.IsLocked())
	})

	t.Run("FinishDrawing_LastSquareFinishesGame", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sessA, playerA := fixture.join(t, "alice")
		_, playerB := fixture.join(t, "bob")

		// Given: every square but one already captured, alice far ahead
		for row := 0; row < entity.BoardSize; row++ {
			for col := 0; col < entity.BoardSize; col++ {
				if row == entity.BoardSize-1 && col == entity.BoardSize-1 {
					continue
				}
				ownerID := playerA.ID
				if row == 0 && col < 3 {
					ownerID = playerB.ID
				}
				require.True(t, fixture.game.Board.TrySetLocked(row, col, ownerID))
				require.NoError(t, fixture.game.Board.SetCaptured(row, col, ownerID, 90))
			}
		}

		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sessA, entity.BoardSize-1, entity.BoardSize-1))
		fixture.dispatcher.Reset()

		// When: alice captures the last square
		result, err := fixture.coordinator.FinishDrawing(ctx, sessA, entity.BoardSize-1, entity.BoardSize-1, 60)

		// Then: the game finishes and the terminal event follows the capture
		require.NoError(t, err)
		assert.True(t, result.Captured)
		assert.True(t, result.Finished)

		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 2)
		_, ok := calls[0].payload.(broadcast.SquareCaptured)
		require.True(t, ok)
		finishedEvent, ok := calls[1].payload.(broadcast.GameFinished)
		require.True(t, ok)
		assert.Equal(t, []string{playerA.ID}, finishedEvent.Winners)
		assert.Equal(t, 61, finishedEvent.Scores[playerA.ID])
		assert.Equal(t, 3, finishedEvent.Scores[playerB.ID])

		// Then: further drawing is rejected
		err = fixture.coordinator.StartDrawing(ctx, sessA, 0, 0)
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})

	t.Run("FinishDrawing_WithoutLock", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sess, _ := fixture.join(t, "alice")
		fixture.dispatcher.Reset()

		// When: finish arrives for a square the sender never locked
		_, err := fixture.coordinator.FinishDrawing(ctx, sess, 5, 5, 90)

		// Then: the request is rejected
		assert.ErrorIs(t, err, apperror.ErrNoActiveDrawing)
		assert.Empty(t, fixture.dispatcher.Calls())
	})
}

func TestGameCoordinator_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Disconnect_ReleasesLocksKeepsCaptures", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sessA, playerA := fixture.join(t, "alice")
		sessB, _ := fixture.join(t, "bob")

		// Given: alice captured one square and holds a lock on another
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sessA, 0, 0))
		_, err := fixture.coordinator.FinishDrawing(ctx, sessA, 0, 0, 80)
		require.NoError(t, err)
		require.NoError(t, fixture.coordinator.StartDrawing(ctx, sessA, 1, 1))
		fixture.dispatcher.Reset()

		// When: alice disconnects
		fixture.coordinator.Disconnect(ctx, sessA.ID)

		// Then: the locked square is freed, announced as failed, and player_left follows
		calls := fixture.dispatcher.Calls()
		require.Len(t, calls, 2)
		failed, ok := calls[0].payload.(broadcast.SquareFailed)
		require.True(t, ok)
		assert.Equal(t, 1, failed.Row)
		assert.Equal(t, 1, failed.Col)
		left, ok := calls[1].payload.(broadcast.PlayerLeft)
		require.True(t, ok)
		assert.Equal(t, playerA.ID, left.PlayerID)
		require.Len(t, left.SquaresFreed, 1)

		// Then: the captured square keeps its owner
		square, getErr := fixture.game.Board.Get(0, 0)
		require.NoError(t, getErr)
		assert.True(t, square.IsCaptured())
		assert.Equal(t, playerA.ID, square.OwnerID)

		// Then: the session binding and stored player are removed
		_, stillBound := fixture.registry.GetByPlayerID(playerA.ID)
		assert.False(t, stillBound)
		assert.Contains(t, fixture.playerRepo.deleted, playerA.ID)

		// Then: the freed square is immediately contestable by bob
		assert.NoError(t, fixture.coordinator.StartDrawing(ctx, sessB, 1, 1))
	})

	t.Run("Disconnect_NeverJoined", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		fixture.join(t, "alice")
		fixture.dispatcher.Reset()

		// When: a connection that never joined drops
		fixture.coordinator.Disconnect(ctx, "sess-anon")

		// Then: nothing is broadcast and the roster is untouched
		assert.Empty(t, fixture.dispatcher.Calls())
		assert.Equal(t, 1, fixture.registry.Count())
	})

	t.Run("Disconnect_FreesColorForReuse", func(t *testing.T) {
		fixture := newCoordinatorFixture(t)
		sessA, _ := fixture.join(t, "alice")
		fixture.join(t, "bob")

		// When: alice leaves and a new player joins
		fixture.coordinator.Disconnect(ctx, sessA.ID)
		_, carol := fixture.join(t, "carol")

		// Then: carol inherits the freed color
		assert.Equal(t, "red", carol.Color)
	})
}

func TestGameCoordinator_GetState(t *testing.T) {
	ctx := context.Background()

	fixture := newCoordinatorFixture(t)
	sess, player := fixture.join(t, "alice")
	require.NoError(t, fixture.coordinator.StartDrawing(ctx, sess, 3, 3))
	_, err := fixture.coordinator.FinishDrawing(ctx, sess, 3, 3, scribbo.MinCoverage)
	require.NoError(t, err)

	// When: a client asks for the full state
	snapshot := fixture.coordinator.GetState(ctx)

	// Then: the snapshot reflects the capture and the synced score
	assert.Equal(t, entity.StatusOngoing, snapshot.Status)
	assert.Equal(t, player.ID, snapshot.Board.Squares[3][3].OwnerID)
	require.Len(t, snapshot.Players, 1)
	assert.Equal(t, 1, snapshot.Players[0].Score)
}
