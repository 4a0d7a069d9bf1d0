package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Coordinator owns the chat sessions of all connected users. A session is
// created on the first Acquire for a user and disposed when the last holder
// releases it or when the user signs out.
type Coordinator struct {
	connector Connector
	opts      Options
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	ready   chan struct{}
	session *Session
	err     error
	refs    int
}

// NewCoordinator returns a coordinator opening connections with connector.
func NewCoordinator(connector Connector, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		connector: connector,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "chat-coordinator").Logger(),
		sessions:  map[string]*sessionEntry{},
	}
}

// Acquire returns the session of userID, creating it if needed. The caller
// must call release exactly once when done; extra calls are ignored.
func (c *Coordinator) Acquire(ctx context.Context, userID string) (*Session, func(), error) {
	if userID == "" {
		return nil, nil, errors.New("chat: empty user id")
	}

	c.mu.Lock()
	entry, ok := c.sessions[userID]
	if ok {
		entry.refs++
		c.mu.Unlock()
		<-entry.ready
		if entry.err != nil {
			return nil, nil, entry.err
		}
		return entry.session, c.releaser(userID, entry), nil
	}

	entry = &sessionEntry{ready: make(chan struct{}), refs: 1}
	c.sessions[userID] = entry
	c.mu.Unlock()

	client, err := c.connector.Connect(ctx, userID)
	if err != nil {
		entry.err = errors.Wrapf(err, "connect chat user %s", userID)
		c.mu.Lock()
		if c.sessions[userID] == entry {
			delete(c.sessions, userID)
		}
		c.mu.Unlock()
		close(entry.ready)
		c.log.Error().Err(err).Str("user", userID).Msg("❌ failed to start chat session")
		return nil, nil, entry.err
	}

	entry.session = newSession(client, c.opts)
	close(entry.ready)
	c.log.Info().Str("user", userID).Msg("✅ chat session started")
	if c.opts.OnStart != nil {
		c.opts.OnStart(userID)
	}
	return entry.session, c.releaser(userID, entry), nil
}

// Lookup returns the live session of userID without taking a reference.
func (c *Coordinator) Lookup(userID string) (*Session, bool) {
	c.mu.Lock()
	entry, ok := c.sessions[userID]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	<-entry.ready
	if entry.err != nil {
		return nil, false
	}
	return entry.session, true
}

// End disposes the session of userID regardless of outstanding references.
func (c *Coordinator) End(userID string) {
	c.mu.Lock()
	entry, ok := c.sessions[userID]
	if ok {
		delete(c.sessions, userID)
	}
	c.mu.Unlock()
	if ok {
		c.dispose(userID, entry)
	}
}

// Shutdown disposes every session.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	entries := c.sessions
	c.sessions = map[string]*sessionEntry{}
	c.mu.Unlock()

	for userID, entry := range entries {
		c.dispose(userID, entry)
	}
}

func (c *Coordinator) releaser(userID string, entry *sessionEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if c.sessions[userID] != entry {
				// already ended
				c.mu.Unlock()
				return
			}
			entry.refs--
			last := entry.refs <= 0
			if last {
				delete(c.sessions, userID)
			}
			c.mu.Unlock()
			if last {
				c.dispose(userID, entry)
			}
		})
	}
}

func (c *Coordinator) dispose(userID string, entry *sessionEntry) {
	<-entry.ready
	if entry.session == nil {
		return
	}
	if err := entry.session.Close(); err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("⚠️ chat session closed with error")
	}
	if c.opts.OnEnd != nil {
		c.opts.OnEnd(userID)
	}
	c.log.Info().Str("user", userID).Msg("chat session ended")
}
