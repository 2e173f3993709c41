package server

import (
	"encoding/json"
	"sync"
)

// DuelEvent is the payload published to duel subscribers.
type DuelEvent struct {
	Type          string `json:"type"`
	DuelID        string `json:"duelId"`
	Round         int    `json:"round,omitempty"`
	Status        string `json:"status,omitempty"`
	CreatorScore  int    `json:"creatorScore,omitempty"`
	OpponentScore int    `json:"opponentScore,omitempty"`
	WinnerUserID  int64  `json:"winnerUserId,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by duel ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given duel.
func (b *Broker) Subscribe(duelID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[duelID] == nil {
		b.subs[duelID] = make(map[chan []byte]struct{})
	}
	b.subs[duelID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the duel's subscribers.
func (b *Broker) Unsubscribe(duelID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[duelID], ch)
	if len(b.subs[duelID]) == 0 {
		delete(b.subs, duelID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given duel.
func (b *Broker) Publish(duelID string, event DuelEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[duelID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
