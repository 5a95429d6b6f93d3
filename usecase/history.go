package usecase

import (
	"sync"

	"github.com/satriahrh/cocoa-relay/domain"
)

// HistoryStore keeps the most recent exchanges per conversation in memory,
// keyed by domain.ConversationKey. Conversations are registered lazily and
// live for the process lifetime.
type HistoryStore struct {
	window int

	mu       sync.RWMutex
	channels map[string][]domain.Exchange
}

// NewHistoryStore keeps up to persona.ShortTermWindow exchanges
// (2×window turns) per conversation. The persona must come from
// domain.NewPersona, which rejects non-positive windows.
func NewHistoryStore(persona *domain.Persona) *HistoryStore {
	return &HistoryStore{
		window:   persona.ShortTermWindow,
		channels: make(map[string][]domain.Exchange),
	}
}

// Get returns a copy of the conversation's exchanges, oldest first, registering
// the conversation when it has not been seen before.
func (h *HistoryStore) Get(key string) []domain.Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	seq, ok := h.channels[key]
	if !ok {
		h.channels[key] = []domain.Exchange{}
		return []domain.Exchange{}
	}
	return append([]domain.Exchange(nil), seq...)
}

// Append records a completed exchange and evicts the oldest ones past the window.
func (h *HistoryStore) Append(key, userText, botText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seq := append(h.channels[key], domain.NewExchange(userText, botText))
	for len(seq) > h.window {
		seq = seq[1:]
	}
	// Reslicing keeps evicted exchanges reachable; compact once the backing
	// array has grown well past the window.
	if cap(seq) > 4*h.window {
		seq = append(make([]domain.Exchange, 0, 2*h.window), seq...)
	}
	h.channels[key] = seq
}

func (h *HistoryStore) Len(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[key])
}

// Channels returns the number of registered conversations.
func (h *HistoryStore) Channels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

func (h *HistoryStore) Window() int { return h.window }
