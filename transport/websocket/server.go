package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/scribbogame/scribbo-backend/internal/entity"
	"github.com/scribbogame/scribbo-backend/internal/metrics"
	"github.com/scribbogame/scribbo-backend/internal/session"
	"github.com/scribbogame/scribbo-backend/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type coordinator interface {
	Join(ctx context.Context, sess *session.Session, name string) (*entity.Player, *entity.GameSnapshot, error)
	StartDrawing(ctx context.Context, sess *session.Session, row, col int) error
	ForwardDrawing(ctx context.Context, sess *session.Session, row, col int, points json.RawMessage) error
	FinishDrawing(ctx context.Context, sess *session.Session, row, col int, coverage float64) (*usecase.FinishResult, error)
	GetState(ctx context.Context) *entity.GameSnapshot
	Disconnect(ctx context.Context, sessionID string)
}

type Server struct {
	logger      *slog.Logger
	coordinator coordinator
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, sess *session.Session, msg *Message) error
}

func New(logger *slog.Logger, coord coordinator, m *metrics.Metrics) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		coordinator: coord,
		metrics:     m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *session.Session, *Message) error),
	}

	server.handlers[actionJoin] = server.handleJoin
	server.handlers[actionStartDrawing] = server.handleStartDrawing
	server.handlers[actionDrawingData] = server.handleDrawingData
	server.handlers[actionFinishDrawing] = server.handleFinishDrawing
	server.handlers[actionGetGameState] = server.handleGetGameState
	server.handlers[actionLeave] = server.handleLeave

	return server
}

// Start - starts the WebSocket server on the given host:port address and
// blocks until the context is canceled or the listener fails.
func (that *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived; read deadlines are managed per message
		IdleTimeout: 2 * pongWait,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection - upgrades the request and runs the read loop until the
// client goes away. Cleanup runs unconditionally, so an abrupt socket failure
// frees the player's locks the same way a graceful leave does.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	sess := session.NewSession(uuid.NewString())
	log = log.With("sessionID", sess.ID)
	log.Info("connection established", "remoteAddr", conn.RemoteAddr().String())

	defer func() {
		that.coordinator.Disconnect(ctx, sess.ID)
		sess.Close()
		conn.Close()
		log.Info("connection closed")
	}()

	go that.writePump(conn, sess)

	that.readLoop(ctx, conn, sess)
}

// readLoop - decodes client messages and routes them to the handlers. Protocol
// errors are answered on the same connection; only transport failures end the
// loop.
func (that *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	log := that.logger.With("method", "readLoop", "sessionID", sess.ID)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("unexpected close", "error", err)
			}
			return
		}

		that.metrics.MessagesReceived.Inc()

		var msg Message
		if err = json.Unmarshal(raw, &msg); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			that.sendError(sess, "", reasonMalformed, "message is not valid JSON")
			continue
		}

		handler, ok := that.handlers[msg.Type]
		if !ok {
			log.Warn("unknown message type", "type", msg.Type)
			that.sendError(sess, msg.RequestID, reasonUnknownType, fmt.Sprintf("unknown message type: %q", msg.Type))
			continue
		}

		if err = handler(ctx, sess, &msg); err != nil {
			that.sendError(sess, msg.RequestID, reasonFor(err), err.Error())
		}
	}
}

// writePump - the single writer for the connection. It drains the session's
// outbound queue and keeps the connection alive with pings; it exits when the
// session closes.
func (that *Server) writePump(conn *websocket.Conn, sess *session.Session) {
	log := that.logger.With("method", "writePump", "sessionID", sess.ID)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-sess.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// send - marshals a response and queues it on the sender's own session, so
// direct replies and broadcast events share one ordered writer.
func (that *Server) send(sess *session.Session, payload any) {
	log := that.logger.With("method", "send", "sessionID", sess.ID)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		return
	}

	if !sess.Enqueue(raw) {
		log.Warn("response dropped, session queue full or closed")
	}
}

func (that *Server) sendError(sess *session.Session, requestID, reason, message string) {
	that.send(sess, errorResponse{
		Type:      "error",
		RequestID: requestID,
		Reason:    reason,
		Message:   message,
	})
}
