package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/scribbogame/scribbo-backend/internal/session"
)

// eventQueueSize bounds how many undelivered events the dispatcher holds.
const eventQueueSize = 1024

type registry interface {
	Sessions() []*session.Session
}

// event pairs a wire payload with its delivery exclusion.
type event struct {
	payload any
	exclude string // session id to skip, empty for everyone
}

// Dispatcher fans state-change events out to every registered session.
// Events are consumed by a single goroutine, so all observers see them in
// the order they were produced; per-square lock -> resolution causality is
// preserved because producers enqueue after each state change.
type Dispatcher struct {
	logger   *slog.Logger
	registry registry

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, reg registry) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With("component", "broadcast"),
		registry: reg,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
	}
}

// Start - launches the fan-out loop.
func (that *Dispatcher) Start() {
	that.wg.Add(1)
	go that.run()
}

// Stop - stops the fan-out loop after draining queued events.
func (that *Dispatcher) Stop() {
	close(that.done)
	that.wg.Wait()
}

// Dispatch - queues a payload for delivery to every registered session except
// the excluded one. Producers call this after releasing the game critical
// section, so a slow consumer never stalls game logic.
func (that *Dispatcher) Dispatch(payload any, excludeSessionID string) {
	select {
	case that.events <- event{payload: payload, exclude: excludeSessionID}:
	case <-that.done:
		that.logger.Warn("dispatcher stopped, event dropped")
	}
}

// QueueDepth - the number of events waiting for fan-out.
func (that *Dispatcher) QueueDepth() int {
	return len(that.events)
}

func (that *Dispatcher) run() {
	defer that.wg.Done()

	for {
		select {
		case evt := <-that.events:
			that.deliver(evt)
		case <-that.done:
			// Drain what was queued before the stop so observers do not
			// miss the tail of a game.
			for {
				select {
				case evt := <-that.events:
					that.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (that *Dispatcher) deliver(evt event) {
	data, err := json.Marshal(evt.payload)
	if err != nil {
		that.logger.Error("failed to marshal event", "error", err)
		return
	}

	for _, sess := range that.registry.Sessions() {
		if sess.ID == evt.exclude {
			continue
		}

		if !sess.Enqueue(data) {
			that.logger.Warn("session buffer full, event dropped", "sessionID", sess.ID)
		}
	}
}
