package entity

import (
	"fmt"
	"sort"

	"github.com/scribbogame/scribbo-backend/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"
)

// Game is the single authoritative aggregate: it exclusively owns the board
// and the set of active players. All reads go through its snapshot so no other
// component keeps its own copy of the truth.
type Game struct {
	ID      string             `json:"id"`
	Board   *Board             `json:"board"`
	Status  string             `json:"status"`
	Players map[string]*Player `json:"players"`
	Winners []string           `json:"winners,omitempty"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:      id,
		Board:   NewBoard(),
		Status:  StatusWaiting,
		Players: make(map[string]*Player),
	}
}

// AddPlayer - registers a player under a free color. The game moves from
// waiting to ongoing on the first join.
func (that *Game) AddPlayer(id, name string) (*Player, error) {
	if that.IsFinished() {
		return nil, apperror.ErrGameFinished
	}

	if len(that.Players) >= MaxPlayers {
		return nil, fmt.Errorf("%w: %d players connected", apperror.ErrGameFull, len(that.Players))
	}

	for _, player := range that.Players {
		if player.Name == name {
			return nil, fmt.Errorf("%w: %s", apperror.ErrNameTaken, name)
		}
	}

	player := &Player{
		ID:    id,
		Name:  name,
		Color: that.nextFreeColor(),
	}
	that.Players[id] = player

	if that.IsWaiting() {
		that.Status = StatusOngoing
	}

	return player, nil
}

// RemovePlayer - removes the player from the active set. Squares they already
// captured keep their owner and still count toward the final standings.
func (that *Game) RemovePlayer(id string) (*Player, error) {
	player, ok := that.Players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrPlayerNotFound, id)
	}

	delete(that.Players, id)

	return player, nil
}

func (that *Game) GetPlayer(id string) (*Player, error) {
	player, ok := that.Players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrPlayerNotFound, id)
	}

	return player, nil
}

// nextFreeColor - picks the first palette color not held by an active player.
// AddPlayer guarantees a free slot exists before this is called.
func (that *Game) nextFreeColor() string {
	used := make(map[string]bool, len(that.Players))
	for _, player := range that.Players {
		used[player.Color] = true
	}

	for _, color := range Colors {
		if !used[color] {
			return color
		}
	}

	return ""
}

// SyncScores - recomputes every active player's score from the board. The
// board is the only source of truth for captures.
func (that *Game) SyncScores() {
	counts := that.Board.CaptureCounts()
	for _, player := range that.Players {
		player.Score = counts[player.ID]
	}
}

// Finish - marks the game finished and records the winner set: all active
// players sharing the maximum captured count. Ties are reported as a set.
func (that *Game) Finish() {
	that.SyncScores()
	that.Status = StatusFinished
	that.Winners = that.computeWinners()
}

func (that *Game) computeWinners() []string {
	maxScore := -1
	for _, player := range that.Players {
		if player.Score > maxScore {
			maxScore = player.Score
		}
	}

	var winners []string
	for _, player := range that.Players {
		if player.Score == maxScore {
			winners = append(winners, player.ID)
		}
	}

	sort.Strings(winners)

	return winners
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	default:
		return nil
	}
}

// Snapshot - returns a deep copy of the game safe to serialize and hand to
// other goroutines after the critical section is released.
func (that *Game) Snapshot() *GameSnapshot {
	that.SyncScores()

	boardCopy := *that.Board

	players := make([]*Player, 0, len(that.Players))
	for _, player := range that.Players {
		playerCopy := *player
		players = append(players, &playerCopy)
	}

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	winners := make([]string, len(that.Winners))
	copy(winners, that.Winners)

	return &GameSnapshot{
		ID:      that.ID,
		Status:  that.Status,
		Board:   &boardCopy,
		Players: players,
		Winners: winners,
	}
}

// GameSnapshot is the serializable view of the game sent to clients and
// persisted by the repositories.
type GameSnapshot struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Board   *Board    `json:"board"`
	Players []*Player `json:"players"`
	Winners []string  `json:"winners,omitempty"`
}
