package broadcast

import (
	"encoding/json"

	"github.com/scribbogame/scribbo-backend/internal/entity"
)

const (
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventSquareLocked   = "square_locked"
	EventSquareCaptured = "square_captured"
	EventSquareFailed   = "square_failed"
	EventDrawingUpdate  = "drawing_update"
	EventGameFinished   = "game_finished"
)

// SquareRef identifies a square in an event without carrying its state.
type SquareRef struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type PlayerJoined struct {
	Type         string `json:"type"`
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	TotalPlayers int    `json:"total_players"`
}

func NewPlayerJoined(player *entity.Player, totalPlayers int) PlayerJoined {
	return PlayerJoined{
		Type:         EventPlayerJoined,
		PlayerID:     player.ID,
		Name:         player.Name,
		Color:        player.Color,
		TotalPlayers: totalPlayers,
	}
}

type PlayerLeft struct {
	Type         string      `json:"type"`
	PlayerID     string      `json:"player_id"`
	Name         string      `json:"name"`
	SquaresFreed []SquareRef `json:"squares_freed,omitempty"`
}

func NewPlayerLeft(player *entity.Player, freed []*entity.Square) PlayerLeft {
	refs := make([]SquareRef, 0, len(freed))
	for _, square := range freed {
		refs = append(refs, SquareRef{Row: square.Row, Col: square.Col})
	}

	return PlayerLeft{
		Type:         EventPlayerLeft,
		PlayerID:     player.ID,
		Name:         player.Name,
		SquaresFreed: refs,
	}
}

type SquareLocked struct {
	Type     string `json:"type"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	PlayerID string `json:"player_id"`
}

func NewSquareLocked(row, col int, playerID string) SquareLocked {
	return SquareLocked{
		Type:     EventSquareLocked,
		Row:      row,
		Col:      col,
		PlayerID: playerID,
	}
}

type SquareCaptured struct {
	Type     string  `json:"type"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	PlayerID string  `json:"player_id"`
	Coverage float64 `json:"coverage"`
}

func NewSquareCaptured(row, col int, playerID string, coverage float64) SquareCaptured {
	return SquareCaptured{
		Type:     EventSquareCaptured,
		Row:      row,
		Col:      col,
		PlayerID: playerID,
		Coverage: coverage,
	}
}

type SquareFailed struct {
	Type     string  `json:"type"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	PlayerID string  `json:"player_id"`
	Coverage float64 `json:"coverage,omitempty"`
}

func NewSquareFailed(row, col int, playerID string, coverage float64) SquareFailed {
	return SquareFailed{
		Type:     EventSquareFailed,
		Row:      row,
		Col:      col,
		PlayerID: playerID,
		Coverage: coverage,
	}
}

// DrawingUpdate forwards in-progress stroke points. The points are opaque to
// the server and never affect capture determination.
type DrawingUpdate struct {
	Type     string          `json:"type"`
	Row      int             `json:"row"`
	Col      int             `json:"col"`
	PlayerID string          `json:"player_id"`
	Points   json.RawMessage `json:"points"`
}

func NewDrawingUpdate(row, col int, playerID string, points json.RawMessage) DrawingUpdate {
	return DrawingUpdate{
		Type:     EventDrawingUpdate,
		Row:      row,
		Col:      col,
		PlayerID: playerID,
		Points:   points,
	}
}

type GameFinished struct {
	Type    string               `json:"type"`
	Winners []string             `json:"winners"`
	Scores  map[string]int       `json:"scores"`
	State   *entity.GameSnapshot `json:"state"`
}

func NewGameFinished(snapshot *entity.GameSnapshot) GameFinished {
	scores := make(map[string]int, len(snapshot.Players))
	for _, player := range snapshot.Players {
		scores[player.ID] = player.Score
	}

	return GameFinished{
		Type:    EventGameFinished,
		Winners: snapshot.Winners,
		Scores:  scores,
		State:   snapshot,
	}
}
