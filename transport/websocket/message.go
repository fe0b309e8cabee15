package websocket

import (
	"encoding/json"
	"errors"

	"github.com/scribbogame/scribbo-backend/internal/apperror"
	"github.com/scribbogame/scribbo-backend/internal/entity"
)

const (
	actionJoin          = "join"
	actionStartDrawing  = "start_drawing"
	actionDrawingData   = "drawing_data"
	actionFinishDrawing = "finish_drawing"
	actionGetGameState  = "get_game_state"
	actionLeave         = "leave"
)

// Message is the envelope for every client request. Row, col and coverage are
// pointers so a missing field is distinguishable from a zero value and can be
// rejected as malformed instead of silently defaulting.
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Row       *int            `json:"row,omitempty"`
	Col       *int            `json:"col,omitempty"`
	Coverage  *float64        `json:"coverage,omitempty"`
	Points    json.RawMessage `json:"points,omitempty"`
}

type joinSuccessResponse struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id,omitempty"`
	PlayerID  string               `json:"player_id"`
	Name      string               `json:"name"`
	Color     string               `json:"color"`
	State     *entity.GameSnapshot `json:"state"`
}

type startDrawingSuccessResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
}

type drawingDataReceivedResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
}

type gameStateResponse struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id,omitempty"`
	State     *entity.GameSnapshot `json:"state"`
}

type errorResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

const (
	reasonSquareLocked    = "square_locked"
	reasonSquareCaptured  = "square_captured"
	reasonNoActiveDrawing = "no_active_drawing"
	reasonInvalidSquare   = "invalid_square"
	reasonInvalidCoverage = "invalid_coverage"
	reasonGameFull        = "game_full"
	reasonNameTaken       = "name_taken"
	reasonGameFinished    = "game_finished"
	reasonGameNotStarted  = "game_not_started"
	reasonNotJoined       = "not_joined"
	reasonUnknownType     = "unknown_message_type"
	reasonMalformed       = "malformed_message"
	reasonInternal        = "internal_error"
)

// reasonFor maps the game errors onto the stable reason codes of the wire
// protocol. Anything unrecognized is reported as internal so client behavior
// never depends on incidental error text.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, apperror.ErrSquareLocked):
		return reasonSquareLocked
	case errors.Is(err, apperror.ErrSquareCaptured):
		return reasonSquareCaptured
	case errors.Is(err, apperror.ErrNoActiveDrawing):
		return reasonNoActiveDrawing
	case errors.Is(err, apperror.ErrInvalidSquare):
		return reasonInvalidSquare
	case errors.Is(err, apperror.ErrInvalidCoverage):
		return reasonInvalidCoverage
	case errors.Is(err, apperror.ErrGameFull):
		return reasonGameFull
	case errors.Is(err, apperror.ErrNameTaken):
		return reasonNameTaken
	case errors.Is(err, apperror.ErrGameFinished):
		return reasonGameFinished
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return reasonGameNotStarted
	case errors.Is(err, apperror.ErrNotJoined):
		return reasonNotJoined
	case errors.Is(err, apperror.ErrUnknownMessageType):
		return reasonUnknownType
	default:
		return reasonInternal
	}
}
