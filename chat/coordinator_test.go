package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(connector Connector) (*Coordinator, *int32, *int32) {
	var started, ended int32
	opts := Options{
		Logger:  zerolog.Nop(),
		OnStart: func(string) { atomic.AddInt32(&started, 1) },
		OnEnd:   func(string) { atomic.AddInt32(&ended, 1) },
	}
	return NewCoordinator(connector, opts), &started, &ended
}

func TestCoordinatorSharesSession(t *testing.T) {
	connector := newFakeConnector()
	coord, started, _ := newTestCoordinator(connector)
	defer coord.Shutdown()

	const n = 8
	sessions := make([]*Session, n)
	releases := make([]func(), n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, release, err := coord.Acquire(context.Background(), "alice")
			assert.NoError(t, err)
			sessions[i], releases[i] = s, release
		}(i)
	}
	wg.Wait()

	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, connector.connects)
	assert.Equal(t, int32(1), atomic.LoadInt32(started))

	for _, release := range releases {
		release()
	}
}

func TestCoordinatorReleaseDisposesOnce(t *testing.T) {
	connector := newFakeConnector()
	coord, _, ended := newTestCoordinator(connector)

	_, r1, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	_, r2, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)

	r1()
	r1()
	_, ok := coord.Lookup("alice")
	assert.True(t, ok, "second holder keeps the session alive")

	r2()
	_, ok = coord.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(ended))
	assert.Equal(t, 1, connector.client("alice").disconnectCount())
	assert.Equal(t, 0, connector.client("alice").handlerCount())
}

func TestCoordinatorEnd(t *testing.T) {
	connector := newFakeConnector()
	coord, _, ended := newTestCoordinator(connector)

	s, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)

	coord.End("alice")
	coord.End("alice")
	assert.Equal(t, int32(1), atomic.LoadInt32(ended))

	_, err = s.Conversation(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrSessionClosed)

	// releasing an ended session is a no-op
	release()
	assert.Equal(t, int32(1), atomic.LoadInt32(ended))

	s2, release2, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer release2()
	assert.NotSame(t, s, s2)
}

func TestCoordinatorConnectError(t *testing.T) {
	connector := newFakeConnector()
	connector.err = errProvider
	coord, started, _ := newTestCoordinator(connector)

	_, _, err := coord.Acquire(context.Background(), "alice")
	assert.ErrorIs(t, err, errProvider)
	assert.Equal(t, int32(0), atomic.LoadInt32(started))

	_, ok := coord.Lookup("alice")
	assert.False(t, ok)

	connector.err = nil
	_, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	release()
}

func TestCoordinatorRejectsEmptyUser(t *testing.T) {
	coord, _, _ := newTestCoordinator(newFakeConnector())
	_, _, err := coord.Acquire(context.Background(), "")
	assert.Error(t, err)
}

func TestSessionFanOutAndConversationReuse(t *testing.T) {
	connector := newFakeConnector()
	coord, _, _ := newTestCoordinator(connector)
	defer coord.Shutdown()

	s, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.notify)

	c1, err := s.Conversation(context.Background(), "bob")
	require.NoError(t, err)
	c2, err := s.Conversation(context.Background(), "bob")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	client := connector.client("alice")
	client.emit(incoming(c1.ChannelID(), "m1", "bob", "hi"))
	assert.Equal(t, 1, countKind(rec, UpdateMessage))

	unsubscribe()
	client.emit(incoming(c1.ChannelID(), "m2", "bob", "again"))
	assert.Equal(t, 1, countKind(rec, UpdateMessage))
	assert.Len(t, c1.Messages(), 2)
}

func TestSessionRingsForInviteOnUnopenedChannel(t *testing.T) {
	connector := newFakeConnector()
	coord, _, _ := newTestCoordinator(connector)
	defer coord.Shutdown()

	s, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	rec := &recorder{}
	defer s.Subscribe(rec.notify)()

	// alice has no conversation with bob, so the provider only notifies
	channelID := ChannelID("alice", "bob")
	invite := callInvite(channelID, "i1", "bob", time.Now())
	client := connector.client("alice")
	client.store(channelID, invite)
	client.emit(Event{Type: EventNotificationMessageNew, ChannelID: channelID, UserID: "bob", Message: &invite})

	require.Eventually(t, func() bool {
		call := rec.lastCall()
		return call != nil && call.State == CallInvitationReceived
	}, time.Second, 5*time.Millisecond)

	conv, err := s.Conversation(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.lastCall().CallerID)
	assert.Equal(t, CallInvitationReceived, conv.Call().State)

	call, err := conv.AcceptCall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CallInCall, call.State)
	require.Len(t, conv.Messages(), 2)
	assert.Equal(t, KindCallAccepted, conv.Messages()[1].Kind)
}

func TestSessionRingsForLiveInviteWithoutTimestamp(t *testing.T) {
	connector := newFakeConnector()
	coord, _, _ := newTestCoordinator(connector)
	defer coord.Shutdown()

	s, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	channelID := ChannelID("alice", "bob")
	invite := callInvite(channelID, "i1", "bob", time.Time{})
	client := connector.client("alice")
	client.store(channelID, invite)
	client.emit(Event{Type: EventNotificationMessageNew, ChannelID: channelID, UserID: "bob", Message: &invite})

	require.Eventually(t, func() bool {
		s.mu.Lock()
		c, ok := s.conversations["bob"]
		s.mu.Unlock()
		return ok && c.Call().State == CallInvitationReceived
	}, time.Second, 5*time.Millisecond)

	conv, err := s.Conversation(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, conv.Messages(), 1)
	_, err = conv.AcceptCall(context.Background())
	require.NoError(t, err)
}

func TestSessionIgnoresNonInviteNotifications(t *testing.T) {
	connector := newFakeConnector()
	coord, _, _ := newTestCoordinator(connector)
	defer coord.Shutdown()

	s, release, err := coord.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	channelID := ChannelID("alice", "bob")
	ev := incoming(channelID, "m1", "bob", "hi")
	ev.Type = EventNotificationMessageNew
	connector.client("alice").emit(ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.conversations)
}

func countKind(rec *recorder, kind UpdateKind) int {
	n := 0
	for _, k := range rec.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
