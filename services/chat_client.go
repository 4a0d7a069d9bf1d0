package services

import (
	"context"
	"sync"

	"amora_server/chat"
	"amora_server/models"

	"github.com/rs/zerolog"
)

// chatClient is one user's connection to the ChatService. Events are queued
// without bound and dispatched in order to handlers on the client's own
// goroutine, so a slow handler delays delivery but never loses events.
type chatClient struct {
	svc    *ChatService
	userID string
	log    zerolog.Logger

	qmu     sync.Mutex
	pending []chat.Event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once

	mu          sync.Mutex
	handlers    map[chat.EventType]map[int]chat.Handler
	nextHandler int
	watching    map[string]struct{}
}

func newChatClient(svc *ChatService, userID string) *chatClient {
	return &chatClient{
		svc:      svc,
		userID:   userID,
		log:      svc.Log.With().Str("user", userID).Logger(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		handlers: map[chat.EventType]map[int]chat.Handler{},
		watching: map[string]struct{}{},
	}
}

func (c *chatClient) UserID() string { return c.userID }

func (c *chatClient) CreateOrGetChannel(ctx context.Context, otherUserID string) (chat.ChannelRef, error) {
	id, err := c.svc.createOrGetChannel(ctx, c.userID, otherUserID)
	if err != nil {
		return chat.ChannelRef{}, err
	}
	return chat.ChannelRef{Type: models.ChannelTypeMessaging, ID: id}, nil
}

// WatchChannel subscribes the client to live events of channelID.
func (c *chatClient) WatchChannel(ctx context.Context, channelID string) error {
	if _, err := c.svc.requireMember(ctx, channelID, c.userID); err != nil {
		return err
	}
	c.mu.Lock()
	c.watching[channelID] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *chatClient) isWatching(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.watching[channelID]
	return ok
}

func (c *chatClient) QueryMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if _, err := c.svc.requireMember(ctx, channelID, c.userID); err != nil {
		return nil, err
	}
	return c.svc.latestMessages(ctx, channelID, limit)
}

func (c *chatClient) SendMessage(ctx context.Context, channelID string, msg chat.Message) (chat.Message, error) {
	members, err := c.svc.requireMember(ctx, channelID, c.userID)
	if err != nil {
		return chat.Message{}, err
	}
	sent, err := c.svc.storeMessage(ctx, channelID, c.userID, msg)
	if err != nil {
		return chat.Message{}, err
	}

	m := sent
	c.svc.publish(members, chat.Event{
		ChannelID: channelID,
		UserID:    c.userID,
		Message:   &m,
		CreatedAt: sent.CreatedAt,
	}, func(target *chatClient) chat.EventType {
		if target.isWatching(channelID) {
			return chat.EventMessageNew
		}
		return chat.EventNotificationMessageNew
	})
	return sent, nil
}

func (c *chatClient) StartTyping(ctx context.Context, channelID string) error {
	return c.typing(ctx, channelID, chat.EventTypingStart)
}

func (c *chatClient) StopTyping(ctx context.Context, channelID string) error {
	return c.typing(ctx, channelID, chat.EventTypingStop)
}

func (c *chatClient) typing(ctx context.Context, channelID string, t chat.EventType) error {
	members, err := c.svc.requireMember(ctx, channelID, c.userID)
	if err != nil {
		return err
	}
	c.svc.publish(members, chat.Event{
		Type:      t,
		ChannelID: channelID,
		UserID:    c.userID,
		CreatedAt: c.svc.Now(),
	}, nil)
	return nil
}

func (c *chatClient) QueryChannels(ctx context.Context, limit int) ([]chat.ChannelState, error) {
	return c.svc.queryChannels(ctx, c.userID, limit)
}

func (c *chatClient) MarkRead(ctx context.Context, channelID string) error {
	members, err := c.svc.markRead(ctx, channelID, c.userID)
	if err != nil {
		return err
	}
	c.svc.publish(members, chat.Event{
		Type:      chat.EventMessageRead,
		ChannelID: channelID,
		UserID:    c.userID,
		CreatedAt: c.svc.Now(),
	}, nil)
	return nil
}

func (c *chatClient) On(t chat.EventType, fn chat.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[t] == nil {
		c.handlers[t] = map[int]chat.Handler{}
	}
	id := c.nextHandler
	c.nextHandler++
	c.handlers[t][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[t], id)
	}
}

// Disconnect stops event delivery. It is safe to call more than once.
func (c *chatClient) Disconnect() error {
	c.once.Do(func() {
		c.svc.disconnect(c)
		close(c.done)
		c.log.Debug().Msg("chat client disconnected")
	})
	return nil
}

func (c *chatClient) deliver(ev chat.Event) {
	select {
	case <-c.done:
		return
	default:
	}
	c.qmu.Lock()
	c.pending = append(c.pending, ev)
	c.qmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *chatClient) loop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		c.qmu.Lock()
		batch := c.pending
		c.pending = nil
		c.qmu.Unlock()

		for _, ev := range batch {
			select {
			case <-c.done:
				return
			default:
			}
			c.dispatch(ev)
		}
	}
}

func (c *chatClient) dispatch(ev chat.Event) {
	c.mu.Lock()
	fns := make([]chat.Handler, 0, len(c.handlers[ev.Type]))
	for _, fn := range c.handlers[ev.Type] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
