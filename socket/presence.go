package socket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const presenceWriteTimeout = 5 * time.Second

// PresenceWriter persists the online flag of a user.
type PresenceWriter interface {
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
}

// presence counts live sockets per user. A user is online from their first
// socket until their last one disconnects.
type presence struct {
	mu     sync.Mutex
	counts map[string]int
	store  PresenceWriter
	log    zerolog.Logger
}

func newPresence(store PresenceWriter, log zerolog.Logger) *presence {
	return &presence{counts: make(map[string]int), store: store, log: log}
}

// Writes happen under the lock so that flips of one user reach the store in
// order.
func (p *presence) connected(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	if p.counts[userID] == 1 {
		p.write(userID, true)
	}
}

func (p *presence) disconnected(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[userID]
	if !ok {
		return
	}
	if n > 1 {
		p.counts[userID] = n - 1
		return
	}
	delete(p.counts, userID)
	p.write(userID, false)
}

func (p *presence) sockets(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}

func (p *presence) write(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()
	if err := p.store.SetOnlineStatus(ctx, userID, online); err != nil {
		p.log.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("⚠️ failed to update online status")
	}
}
