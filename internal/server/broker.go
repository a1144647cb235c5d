package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/tabletop/internal/tabletop"
)

// GameEvent is the payload published to stream subscribers.
type GameEvent struct {
	Type string            `json:"type" enum:"state,move,finished"`
	Game tabletop.Instance `json:"game"`
}

// Broker is an in-process pub/sub for game updates, keyed by instance ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given game.
func (b *Broker) Subscribe(gameID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[chan []byte]struct{})
	}
	b.subs[gameID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the game's subscribers.
func (b *Broker) Unsubscribe(gameID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[gameID], ch)
	if len(b.subs[gameID]) == 0 {
		delete(b.subs, gameID)
	}
	b.mu.Unlock()
}

// Publish sends the game's current state to all of its subscribers.
func (b *Broker) Publish(g tabletop.Instance) {
	event := GameEvent{Type: "move", Game: g}
	if g.Status == tabletop.GameFinished {
		event.Type = "finished"
	}
	data, _ := json.Marshal(event)

	b.mu.RLock()
	for ch := range b.subs[g.ID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Streams reports how many streams are open across all games.
func (b *Broker) Streams() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

func (b *Broker) subscribers(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[gameID])
}
