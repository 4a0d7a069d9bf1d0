package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// UnreadTracker keeps per-channel unread counts of the session owner. Counts
// are recomputed from the provider on relevant events and on a fixed
// interval; they are advisory and may lag behind the provider.
type UnreadTracker struct {
	client   Client
	interval time.Duration
	limit    int
	log      zerolog.Logger
	notify   func(Update)

	kick chan struct{}

	mu        sync.Mutex
	byChannel map[string]int
	total     int
}

func newUnreadTracker(client Client, opts Options, notify func(Update)) *UnreadTracker {
	return &UnreadTracker{
		client:    client,
		interval:  opts.UnreadInterval,
		limit:     opts.ChannelQueryLimit,
		log:       opts.Logger.With().Str("component", "unread").Logger(),
		notify:    notify,
		kick:      make(chan struct{}, 1),
		byChannel: map[string]int{},
	}
}

// subscribe wires provider events to recomputation and returns the
// unsubscribe functions.
func (t *UnreadTracker) subscribe() []func() {
	me := t.client.UserID()
	refresh := func(Event) { t.Refresh() }
	return []func(){
		t.client.On(EventNotificationMessageNew, refresh),
		t.client.On(EventMessageNew, func(ev Event) {
			if ev.Message != nil && ev.Message.SenderID == me {
				return
			}
			t.Refresh()
		}),
		t.client.On(EventMessageRead, refresh),
		t.client.On(EventNotificationChannelUpdated, refresh),
	}
}

// Refresh schedules a recomputation. Pending requests coalesce.
func (t *UnreadTracker) Refresh() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// run recomputes once, then on every refresh request and interval tick
// until ctx is done.
func (t *UnreadTracker) run(ctx context.Context) {
	t.recomputeLogged(ctx)

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.kick:
			t.recomputeLogged(ctx)
		case <-tick:
			t.recomputeLogged(ctx)
		}
	}
}

func (t *UnreadTracker) recomputeLogged(ctx context.Context) {
	if err := t.Recompute(ctx); err != nil && ctx.Err() == nil {
		t.log.Warn().Err(err).Msg("⚠️ unread recompute failed, keeping previous counts")
	}
}

// Recompute replaces the tracked counts with the provider's. On failure the
// previous counts are kept.
func (t *UnreadTracker) Recompute(ctx context.Context) error {
	channels, err := t.client.QueryChannels(ctx, t.limit)
	if err != nil {
		return errors.Wrap(err, "query channels")
	}

	counts := make(map[string]int, len(channels))
	for _, ch := range channels {
		if ch.ID == "" || ch.Unread <= 0 {
			continue
		}
		counts[ch.ID] = ch.Unread
	}

	t.mu.Lock()
	t.byChannel = counts
	t.total = sum(counts)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return nil
}

// MarkRead marks a channel read on the provider and drops its count.
func (t *UnreadTracker) MarkRead(ctx context.Context, channelID string) error {
	if err := t.client.MarkRead(ctx, channelID); err != nil {
		return errors.Wrapf(err, "mark %s read", channelID)
	}

	t.mu.Lock()
	delete(t.byChannel, channelID)
	t.total = sum(t.byChannel)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return nil
}

// Snapshot returns the current counts.
func (t *UnreadTracker) Snapshot() UnreadSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Count returns the unread count of one channel.
func (t *UnreadTracker) Count(channelID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byChannel[channelID]
}

func (t *UnreadTracker) snapshotLocked() UnreadSnapshot {
	by := make(map[string]int, len(t.byChannel))
	for id, n := range t.byChannel {
		by[id] = n
	}
	return UnreadSnapshot{Total: t.total, ByChannel: by}
}

func (t *UnreadTracker) publish(snap UnreadSnapshot) {
	if t.notify != nil {
		t.notify(Update{Kind: UpdateUnread, Unread: &snap})
	}
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
