package httpapi

import (
	"sync"

	"chessmate/internal/domain"
	"chessmate/pkg/gamedto"
)

// subscriber buffer; a watcher that falls this far behind starts
// losing intermediate snapshots, never the subscription.
const subscriberBuffer = 8

// Hub fans committed game updates out to websocket watchers. It
// implements the session manager's Notifier and must never block it.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *gamedto.GameView]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *gamedto.GameView]struct{})}
}

// GameUpdated pushes a snapshot to every watcher of the game. Slow
// watchers are skipped, not waited for.
func (h *Hub) GameUpdated(g *domain.Game) {
	view := toView(g)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[g.ID] {
		select {
		case ch <- view:
		default:
		}
	}
}

// Subscribe registers a watcher for one game. The returned cancel
// removes the subscription and closes the channel.
func (h *Hub) Subscribe(gameID string) (<-chan *gamedto.GameView, func()) {
	ch := make(chan *gamedto.GameView, subscriberBuffer)
	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan *gamedto.GameView]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[gameID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, gameID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Watchers reports the subscriber count for one game.
func (h *Hub) Watchers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}
