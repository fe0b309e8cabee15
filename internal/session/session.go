package session

import (
	"sync"

	"github.com/scribbogame/scribbo-backend/internal/entity"
)

// defaultSendBuffer bounds the per-client outbound queue. A client that falls
// this far behind is dropped instead of stalling game logic for everyone else.
const defaultSendBuffer = 256

// Session ties one live connection to a player. The outbound queue decouples
// broadcasting from network writes: the dispatcher enqueues, the connection's
// write loop drains.
type Session struct {
	ID     string
	Player *entity.Player

	send      chan []byte
	closeOnce sync.Once
}

func NewSession(id string) *Session {
	return &Session{
		ID:   id,
		send: make(chan []byte, defaultSendBuffer),
	}
}

// Enqueue - queues a message for delivery without blocking. It reports false
// when the session's buffer is full or already closed.
func (that *Session) Enqueue(message []byte) (queued bool) {
	defer func() {
		// Enqueue may race with Close; a send on the closed channel is
		// reported as not queued rather than propagated as a panic.
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case that.send <- message:
		return true
	default:
		return false
	}
}

// Outbound - the channel the connection's write loop drains. It is closed when
// the session closes.
func (that *Session) Outbound() <-chan []byte {
	return that.send
}

// Close - shuts the outbound queue down exactly once.
func (that *Session) Close() {
	that.closeOnce.Do(func() {
		close(that.send)
	})
}

// Manager is the connection registry: it maps joined players to their live
// sessions and provides the broadcast target set.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // session id -> session
	byPlayer map[string]string   // player id -> session id
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]string),
	}
}

// Register - adds a session to the broadcast targets once its player joined.
func (that *Manager) Register(sess *Session, player *entity.Player) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess.Player = player
	that.sessions[sess.ID] = sess
	that.byPlayer[player.ID] = sess.ID
}

// Unregister - removes the session and reports the player it was bound to,
// if any. Safe to call repeatedly; cleanup runs for graceful quits and abrupt
// socket failures alike.
func (that *Manager) Unregister(sessionID string) *entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	sess, ok := that.sessions[sessionID]
	if !ok {
		return nil
	}

	delete(that.sessions, sessionID)

	if sess.Player != nil {
		delete(that.byPlayer, sess.Player.ID)
		return sess.Player
	}

	return nil
}

// GetByPlayerID - finds the live session of a player.
func (that *Manager) GetByPlayerID(playerID string) (*Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sessionID, ok := that.byPlayer[playerID]
	if !ok {
		return nil, false
	}

	sess, ok := that.sessions[sessionID]

	return sess, ok
}

// Sessions - returns a snapshot of all registered sessions, safe to iterate
// without holding the registry lock.
func (that *Manager) Sessions() []*Session {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sessions := make([]*Session, 0, len(that.sessions))
	for _, sess := range that.sessions {
		sessions = append(sessions, sess)
	}

	return sessions
}

// Count - the number of registered (joined) sessions.
func (that *Manager) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}
