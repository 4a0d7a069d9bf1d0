package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrSessionClosed is returned by operations on a disposed session.
var ErrSessionClosed = errors.New("chat session closed")

const openTimeout = 10 * time.Second

// Options tune sessions created by a Coordinator.
type Options struct {
	// UnreadInterval is the reconciliation period of unread counts. Zero
	// disables the periodic pass; event-driven refreshes still happen.
	UnreadInterval time.Duration

	// HistoryLimit is the number of messages loaded when a conversation opens.
	HistoryLimit int

	// ChannelQueryLimit caps the channels scanned for unread counts.
	ChannelQueryLimit int

	// NewCallID generates call ids.
	NewCallID func() string

	// InviteTTL is how long a call invitation found in history still rings
	// when its conversation opens.
	InviteTTL time.Duration

	// Now is the clock used for invitation age.
	Now func() time.Time

	Logger zerolog.Logger

	// OnStart and OnEnd are called when a user's session is created and
	// disposed.
	OnStart func(userID string)
	OnEnd   func(userID string)
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		UnreadInterval:    30 * time.Second,
		HistoryLimit:      50,
		ChannelQueryLimit: 100,
		NewCallID:         uuid.NewString,
		InviteTTL:         time.Minute,
		Now:               time.Now,
		Logger:            zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = d.HistoryLimit
	}
	if o.ChannelQueryLimit <= 0 {
		o.ChannelQueryLimit = d.ChannelQueryLimit
	}
	if o.NewCallID == nil {
		o.NewCallID = d.NewCallID
	}
	if o.InviteTTL <= 0 {
		o.InviteTTL = d.InviteTTL
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Session is one user's chat state: the provider connection, the unread
// tracker and the open conversations. Sessions are created and disposed by a
// Coordinator.
type Session struct {
	client Client
	opts   Options
	log    zerolog.Logger
	unread *UnreadTracker

	cancel context.CancelFunc
	done   chan struct{}
	offs   []func()

	mu            sync.Mutex
	conversations map[string]*Conversation // by peer id
	observers     map[int]func(Update)
	nextObserver  int
	closed        bool
}

func newSession(client Client, opts Options) *Session {
	s := &Session{
		client:        client,
		opts:          opts,
		log:           opts.Logger.With().Str("user", client.UserID()).Logger(),
		done:          make(chan struct{}),
		conversations: map[string]*Conversation{},
		observers:     map[int]func(Update){},
	}
	s.unread = newUnreadTracker(client, opts, s.broadcast)
	s.offs = append(s.unread.subscribe(),
		client.On(EventMessageNew, s.handleCallInvite),
		client.On(EventNotificationMessageNew, s.handleCallInvite),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.unread.run(ctx)
	}()
	return s
}

// UserID is the session owner.
func (s *Session) UserID() string { return s.client.UserID() }

// Client is the provider connection owned by the session.
func (s *Session) Client() Client { return s.client }

// Unread is the session's unread tracker.
func (s *Session) Unread() *UnreadTracker { return s.unread }

// Conversation returns the conversation with peerID, opening it on first use.
func (s *Session) Conversation(ctx context.Context, peerID string) (*Conversation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c, ok := s.conversations[peerID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	c, err := openConversation(ctx, s.client, peerID, s.opts, s.broadcast)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		c.close()
		return nil, ErrSessionClosed
	}
	if existing, ok := s.conversations[peerID]; ok {
		// lost a race with a concurrent open
		c.close()
		return existing, nil
	}
	s.conversations[peerID] = c
	return c, nil
}

// handleCallInvite makes invitations ring on channels the owner has not
// opened. The conversation is opened in the background and then handed the
// invitation.
func (s *Session) handleCallInvite(ev Event) {
	msg := ev.Message
	if msg == nil || msg.Kind != KindCallInvite || msg.SenderID == s.UserID() {
		return
	}
	peerID := msg.SenderID

	s.mu.Lock()
	c, open := s.conversations[peerID]
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if open {
		// open conversations see message.new themselves
		if ev.Type == EventNotificationMessageNew {
			c.handleMessageNew(ev)
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		c, err := s.Conversation(ctx, peerID)
		if err != nil {
			if !errors.Is(err, ErrSessionClosed) {
				s.log.Warn().Err(err).Str("peer", peerID).Msg("⚠️ failed to open conversation for incoming call")
			}
			return
		}
		// no-op when the history already rang
		c.handleMessageNew(ev)
	}()
}

// Subscribe registers fn for session updates and returns its removal.
func (s *Session) Subscribe(fn func(Update)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) broadcast(u Update) {
	s.mu.Lock()
	fns := make([]func(Update), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Close stops the unread loop, drops event registrations and disconnects
// the provider connection. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conversations := s.conversations
	s.conversations = map[string]*Conversation{}
	s.observers = map[int]func(Update){}
	s.mu.Unlock()

	s.cancel()
	<-s.done

	for _, off := range s.offs {
		off()
	}
	for _, c := range conversations {
		c.close()
	}

	if err := s.client.Disconnect(); err != nil {
		return errors.Wrap(err, "disconnect chat client")
	}
	s.log.Debug().Msg("chat session closed")
	return nil
}
