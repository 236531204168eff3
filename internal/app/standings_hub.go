package app

import (
	"sync"

	"advent-ranking-service/internal/domain"
)

// StandingsHub fans freshly calculated standings out to live subscribers.
// Each subscriber owns a buffered channel of depth one; a slow consumer
// loses intermediate snapshots but always sees the latest.
type StandingsHub struct {
	mu   sync.Mutex
	subs map[chan domain.Standings]struct{}
}

func NewStandingsHub() *StandingsHub {
	return &StandingsHub{subs: make(map[chan domain.Standings]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (h *StandingsHub) Subscribe() (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers a snapshot to every subscriber, replacing any
// undelivered previous snapshot.
func (h *StandingsHub) Broadcast(s domain.Standings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
