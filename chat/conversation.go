package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Conversation is the synchronized state of one direct-message channel as
// seen by the session owner: the message list, the peer's typing indicator
// and the call signaling state.
type Conversation struct {
	client    Client
	channel   ChannelRef
	peerID    string
	log       zerolog.Logger
	notify    func(Update)
	newCallID func() string

	mu       sync.Mutex
	messages []Message
	seen     map[string]struct{}
	typing   bool
	call     CallMachine
	offs     []func()
	closed   bool
}

func openConversation(ctx context.Context, client Client, peerID string, opts Options, notify func(Update)) (*Conversation, error) {
	ref, err := client.CreateOrGetChannel(ctx, peerID)
	if err != nil {
		return nil, errors.Wrap(err, "create or get channel")
	}
	if err := client.WatchChannel(ctx, ref.ID); err != nil {
		return nil, errors.Wrapf(err, "watch channel %s", ref.ID)
	}
	history, err := client.QueryMessages(ctx, ref.ID, opts.HistoryLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "query messages of %s", ref.ID)
	}

	c := &Conversation{
		client:    client,
		channel:   ref,
		peerID:    peerID,
		log:       opts.Logger.With().Str("channel", ref.ID).Str("peer", peerID).Logger(),
		notify:    notify,
		newCallID: opts.NewCallID,
		seen:      make(map[string]struct{}, len(history)),
		call:      NewCallMachine(),
	}
	for _, msg := range history {
		c.appendLocked(msg)
	}

	c.offs = append(c.offs,
		client.On(EventMessageNew, c.handleMessageNew),
		client.On(EventTypingStart, c.handleTyping),
		client.On(EventTypingStop, c.handleTyping),
	)

	c.mu.Lock()
	ringing := c.ringFromHistoryLocked(opts.Now(), opts.InviteTTL)
	snap := c.call.Snapshot()
	c.mu.Unlock()
	if ringing {
		c.log.Info().Str("call", snap.CallID).Msg("📹 pending call invitation")
		c.publishCall(snap)
	}

	c.log.Debug().Int("history", len(c.messages)).Msg("✅ conversation opened")
	return c, nil
}

// ringFromHistoryLocked moves an idle machine to InvitationReceived when the
// newest call message of the history is an invitation from the peer sent
// within ttl.
func (c *Conversation) ringFromHistoryLocked(now time.Time, ttl time.Duration) bool {
	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Call == nil {
			continue
		}
		if msg.Kind != KindCallInvite || msg.SenderID != c.peerID {
			return false
		}
		if now.Sub(msg.CreatedAt) > ttl {
			return false
		}
		return c.call.ReceiveInvite(*msg.Call)
	}
	return false
}

// ChannelID is the id of the underlying channel.
func (c *Conversation) ChannelID() string { return c.channel.ID }

// Channel is the provider reference of the underlying channel.
func (c *Conversation) Channel() ChannelRef { return c.channel }

// PeerID is the other participant.
func (c *Conversation) PeerID() string { return c.peerID }

// Messages returns a copy of the displayed message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// PeerTyping reports whether the peer is typing.
func (c *Conversation) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Call returns the call signaling state.
func (c *Conversation) Call() Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call.Snapshot()
}

// SendText publishes a text message and adds it to the list.
func (c *Conversation) SendText(ctx context.Context, text string) (Message, error) {
	msg := NewText(text)
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	sent, err := c.client.SendMessage(ctx, c.channel.ID, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "send message")
	}
	c.add(sent)
	return sent, nil
}

// SetTyping forwards the owner's typing state to the peer.
func (c *Conversation) SetTyping(ctx context.Context, typing bool) error {
	if typing {
		return c.client.StartTyping(ctx, c.channel.ID)
	}
	return c.client.StopTyping(ctx, c.channel.ID)
}

// StartCall creates a call id, moves to the waiting room and publishes the
// invitation. If publishing fails the state returns to idle.
func (c *Conversation) StartCall(ctx context.Context, callerName string) (Call, error) {
	callID := c.newCallID()
	me := c.client.UserID()

	c.mu.Lock()
	err := c.call.Invite(callID, me, callerName)
	snap := c.call.Snapshot()
	c.mu.Unlock()
	if err != nil {
		return snap, err
	}
	c.publishCall(snap)

	sent, err := c.client.SendMessage(ctx, c.channel.ID, NewCallInvite(callID, me, callerName))
	c.mu.Lock()
	if err != nil {
		c.call.InviteFailed(callID)
	} else {
		c.call.InviteDelivered(callID)
	}
	snap = c.call.Snapshot()
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Str("call", callID).Msg("❌ failed to send call invitation")
		c.publishCall(snap)
		return snap, errors.Wrap(err, "send call invitation")
	}
	c.add(sent)
	c.publishCall(snap)
	return snap, nil
}

// AcceptCall answers the pending invitation and joins the call.
func (c *Conversation) AcceptCall(ctx context.Context) (Call, error) {
	c.mu.Lock()
	callID, err := c.call.PendingInvite()
	snap := c.call.Snapshot()
	c.mu.Unlock()
	if err != nil {
		return snap, err
	}

	sent, err := c.client.SendMessage(ctx, c.channel.ID, NewCallAccepted(callID, snap.CallerID))
	if err != nil {
		c.log.Error().Err(err).Str("call", callID).Msg("❌ failed to send call acceptance")
		return snap, errors.Wrap(err, "send call acceptance")
	}

	c.mu.Lock()
	changed := c.call.Join(callID)
	snap = c.call.Snapshot()
	c.mu.Unlock()

	c.add(sent)
	if changed {
		c.publishCall(snap)
	}
	return snap, nil
}

// DeclineCall drops the pending invitation locally.
func (c *Conversation) DeclineCall() Call {
	c.mu.Lock()
	changed := c.call.Decline()
	snap := c.call.Snapshot()
	c.mu.Unlock()
	if changed {
		c.publishCall(snap)
	}
	return snap
}

// EndCall hangs up locally. Hanging up twice is harmless.
func (c *Conversation) EndCall() Call {
	c.mu.Lock()
	changed := c.call.End()
	snap := c.call.Snapshot()
	c.mu.Unlock()
	if changed {
		c.publishCall(snap)
	}
	return snap
}

func (c *Conversation) handleMessageNew(ev Event) {
	if ev.ChannelID != c.channel.ID || ev.Message == nil {
		return
	}
	msg := *ev.Message
	c.add(msg)

	if msg.SenderID == c.client.UserID() || msg.Call == nil {
		return
	}

	c.mu.Lock()
	var changed bool
	switch msg.Kind {
	case KindCallInvite:
		changed = c.call.ReceiveInvite(*msg.Call)
	case KindCallAccepted:
		changed = c.call.ReceiveAccepted(*msg.Call)
	}
	snap := c.call.Snapshot()
	c.mu.Unlock()

	if changed {
		c.log.Info().Str("call", snap.CallID).Str("state", string(snap.State)).Msg("📹 call state changed")
		c.publishCall(snap)
	}
}

func (c *Conversation) handleTyping(ev Event) {
	if ev.ChannelID != c.channel.ID || ev.UserID == c.client.UserID() {
		return
	}
	typing := ev.Type == EventTypingStart

	c.mu.Lock()
	changed := c.typing != typing
	c.typing = typing
	c.mu.Unlock()

	if changed {
		c.emit(Update{Kind: UpdateTyping, Typing: typing})
	}
}

// add appends msg unless its id was already seen.
func (c *Conversation) add(msg Message) {
	c.mu.Lock()
	added := c.appendLocked(msg)
	c.mu.Unlock()
	if added {
		m := msg
		c.emit(Update{Kind: UpdateMessage, Message: &m})
	}
}

func (c *Conversation) appendLocked(msg Message) bool {
	if msg.ID == "" {
		return false
	}
	if _, ok := c.seen[msg.ID]; ok {
		return false
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	return true
}

func (c *Conversation) publishCall(snap Call) {
	c.emit(Update{Kind: UpdateCall, Call: &snap})
}

func (c *Conversation) emit(u Update) {
	if c.notify == nil {
		return
	}
	u.ChannelID = c.channel.ID
	u.PeerID = c.peerID
	c.notify(u)
}

func (c *Conversation) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	offs := c.offs
	c.offs = nil
	c.mu.Unlock()

	for _, off := range offs {
		off()
	}
}
