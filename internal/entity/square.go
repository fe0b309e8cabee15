package entity

const (
	SquareEmpty    = "empty"
	SquareLocked   = "locked"
	SquareCaptured = "captured"
)

// Square is one of the 64 cells of the board, independently ownable.
type Square struct {
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	State    string  `json:"state"`
	OwnerID  string  `json:"owner_id,omitempty"`
	LockedBy string  `json:"locked_by,omitempty"`
	Coverage float64 `json:"coverage,omitempty"`
}

func (that *Square) IsEmpty() bool {
	return that.State == SquareEmpty
}

func (that *Square) IsLocked() bool {
	return that.State == SquareLocked
}

func (that *Square) IsCaptured() bool {
	return that.State == SquareCaptured
}

// IsLockedBy - reports whether the square is mid-draw for the given player.
func (that *Square) IsLockedBy(playerID string) bool {
	return that.State == SquareLocked && that.LockedBy == playerID
}
