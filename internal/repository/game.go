package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/scribbogame/scribbo-backend/internal/entity"
)

var ErrGameNotFound = errors.New("game not found")

// GameRepository persists game-state snapshots. The in-memory aggregate stays
// the single source of truth; the stored snapshot serves ops tooling and
// post-game inspection.
type GameRepository interface {
	Save(ctx context.Context, snapshot *entity.GameSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.GameSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func (that *dbGame) Save(ctx context.Context, snapshot *entity.GameSnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal game snapshot: %w", err)
	}

	gameKey := "game:" + snapshot.ID
	if err = that.client.Set(ctx, gameKey, snapshotJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set game snapshot: %w", err)
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.GameSnapshot, error) {
	gameKey := "game:" + id

	response, err := that.client.Get(ctx, gameKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game snapshot: %w", err)
	}

	var snapshot entity.GameSnapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game snapshot: %w", err)
	}

	return &snapshot, nil
}

func (that *dbGame) DeleteByID(ctx context.Context, id string) error {
	gameKey := "game:" + id

	if err := that.client.Del(ctx, gameKey).Err(); err != nil {
		return fmt.Errorf("failed to delete game snapshot: %w", err)
	}

	return nil
}
