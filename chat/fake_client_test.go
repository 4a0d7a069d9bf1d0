package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// fakeClient is an in-memory Client. Events are delivered synchronously by
// emit.
type fakeClient struct {
	userID string

	mu          sync.Mutex
	handlers    map[EventType]map[int]Handler
	nextHandler int
	history     map[string][]Message
	sent        []Message
	typing      []bool
	channels    []ChannelState
	read        []string
	nextID      int
	disconnects int
	sendErr     error
	queryErr    error
	markReadErr error
	queryCalls  int
}

func newFakeClient(userID string) *fakeClient {
	return &fakeClient{
		userID:   userID,
		handlers: map[EventType]map[int]Handler{},
		history:  map[string][]Message{},
	}
}

func (f *fakeClient) UserID() string { return f.userID }

func (f *fakeClient) CreateOrGetChannel(_ context.Context, otherUserID string) (ChannelRef, error) {
	return ChannelRef{Type: "messaging", ID: ChannelID(f.userID, otherUserID)}, nil
}

func (f *fakeClient) WatchChannel(context.Context, string) error { return nil }

func (f *fakeClient) QueryMessages(_ context.Context, channelID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...), nil
}

func (f *fakeClient) SendMessage(_ context.Context, channelID string, msg Message) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return Message{}, f.sendErr
	}
	f.nextID++
	msg.ID = fmt.Sprintf("sent-%d", f.nextID)
	msg.ChannelID = channelID
	msg.SenderID = f.userID
	msg.CreatedAt = time.Now()
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeClient) StartTyping(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, true)
	return nil
}

func (f *fakeClient) StopTyping(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, false)
	return nil
}

func (f *fakeClient) QueryChannels(context.Context, int) ([]ChannelState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]ChannelState(nil), f.channels...), nil
}

func (f *fakeClient) MarkRead(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.read = append(f.read, channelID)
	return nil
}

func (f *fakeClient) On(t EventType, fn Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[t] == nil {
		f.handlers[t] = map[int]Handler{}
	}
	id := f.nextHandler
	f.nextHandler++
	f.handlers[t][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[t], id)
	}
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeClient) emit(ev Event) {
	f.mu.Lock()
	var fns []Handler
	for _, fn := range f.handlers[ev.Type] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// store appends msgs to the channel's server side history.
func (f *fakeClient) store(channelID string, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[channelID] = append(f.history[channelID], msgs...)
}

func (f *fakeClient) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}
	return n
}

func (f *fakeClient) setChannels(channels ...ChannelState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = channels
}

func (f *fakeClient) setQueryErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

func (f *fakeClient) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func (f *fakeClient) sentMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func (f *fakeClient) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// fakeConnector hands out fake clients and counts connects.
type fakeConnector struct {
	mu       sync.Mutex
	clients  map[string]*fakeClient
	connects int
	err      error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{clients: map[string]*fakeClient{}}
}

func (c *fakeConnector) Connect(_ context.Context, userID string) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	cl := newFakeClient(userID)
	c.clients[userID] = cl
	return cl, nil
}

func (c *fakeConnector) client(userID string) *fakeClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients[userID]
}

var errProvider = errors.New("provider unavailable")

func incoming(channelID, id, sender, text string) Event {
	return Event{
		Type:      EventMessageNew,
		ChannelID: channelID,
		UserID:    sender,
		Message: &Message{
			ID:        id,
			ChannelID: channelID,
			SenderID:  sender,
			Text:      text,
			Kind:      KindText,
		},
	}
}

// callInvite is a call invitation from sender as stored by the provider.
func callInvite(channelID, id, sender string, at time.Time) Message {
	msg := NewCallInvite("call-"+id, sender, "Bob")
	msg.ID, msg.ChannelID, msg.SenderID, msg.CreatedAt = id, channelID, sender, at
	return msg
}
