package entity

// Colors is the fixed palette assigned to players in join order. Its length
// is also the player capacity of a single game.
var Colors = []string{"red", "blue", "green", "yellow", "purple", "orange", "pink", "cyan"}

const MaxPlayers = 8

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Score int    `json:"score"`
}
