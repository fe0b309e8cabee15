package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/scribbogame/scribbo-backend/internal/session"
)

var errMalformedMessage = errors.New("malformed message")

func (that *Server) handleJoin(ctx context.Context, sess *session.Session, msg *Message) error {
	log := that.logger.With("method", "handleJoin", "sessionID", sess.ID)

	if msg.Name == "" {
		that.sendError(sess, msg.RequestID, reasonMalformed, "name is required")
		return nil
	}

	if sess.Player != nil {
		that.sendError(sess, msg.RequestID, reasonMalformed, "session already joined")
		return nil
	}

	player, snapshot, err := that.coordinator.Join(ctx, sess, msg.Name)
	if err != nil {
		log.Error("failed to join", "name", msg.Name, "error", err)
		return err
	}

	that.send(sess, joinSuccessResponse{
		Type:      "join_success",
		RequestID: msg.RequestID,
		PlayerID:  player.ID,
		Name:      player.Name,
		Color:     player.Color,
		State:     snapshot,
	})

	return nil
}

func (that *Server) handleStartDrawing(ctx context.Context, sess *session.Session, msg *Message) error {
	row, col, err := squareOf(msg)
	if err != nil {
		that.sendError(sess, msg.RequestID, reasonMalformed, err.Error())
		return nil
	}

	if err = that.coordinator.StartDrawing(ctx, sess, row, col); err != nil {
		return err
	}

	that.send(sess, startDrawingSuccessResponse{
		Type:      "start_drawing_success",
		RequestID: msg.RequestID,
		Row:       row,
		Col:       col,
	})

	return nil
}

func (that *Server) handleDrawingData(ctx context.Context, sess *session.Session, msg *Message) error {
	row, col, err := squareOf(msg)
	if err != nil {
		that.sendError(sess, msg.RequestID, reasonMalformed, err.Error())
		return nil
	}

	if len(msg.Points) == 0 {
		that.sendError(sess, msg.RequestID, reasonMalformed, "points is required")
		return nil
	}

	if err = that.coordinator.ForwardDrawing(ctx, sess, row, col, msg.Points); err != nil {
		return err
	}

	that.send(sess, drawingDataReceivedResponse{
		Type:      "drawing_data_received",
		RequestID: msg.RequestID,
		Row:       row,
		Col:       col,
	})

	return nil
}

// handleFinishDrawing resolves the attempt; the sender learns the outcome from
// the square_captured or square_failed broadcast, which includes them.
func (that *Server) handleFinishDrawing(ctx context.Context, sess *session.Session, msg *Message) error {
	log := that.logger.With("method", "handleFinishDrawing", "sessionID", sess.ID)

	row, col, err := squareOf(msg)
	if err != nil {
		that.sendError(sess, msg.RequestID, reasonMalformed, err.Error())
		return nil
	}

	if msg.Coverage == nil {
		that.sendError(sess, msg.RequestID, reasonMalformed, "coverage is required")
		return nil
	}

	result, err := that.coordinator.FinishDrawing(ctx, sess, row, col, *msg.Coverage)
	if err != nil {
		return err
	}

	log.Info("drawing finished", "row", row, "col", col, "captured", result.Captured, "gameFinished", result.Finished)

	return nil
}

func (that *Server) handleGetGameState(ctx context.Context, sess *session.Session, msg *Message) error {
	that.send(sess, gameStateResponse{
		Type:      "game_state",
		RequestID: msg.RequestID,
		State:     that.coordinator.GetState(ctx),
	})

	return nil
}

// handleLeave runs the same cleanup as a dropped socket and then closes the
// session, which shuts the write side down with a normal close frame.
func (that *Server) handleLeave(ctx context.Context, sess *session.Session, _ *Message) error {
	that.coordinator.Disconnect(ctx, sess.ID)
	sess.Close()

	return nil
}

// squareOf extracts the square coordinates, rejecting messages where either is
// absent. Range checking belongs to the board.
func squareOf(msg *Message) (int, int, error) {
	if msg.Row == nil || msg.Col == nil {
		return 0, 0, fmt.Errorf("%w: row and col are required", errMalformedMessage)
	}

	return *msg.Row, *msg.Col, nil
}
