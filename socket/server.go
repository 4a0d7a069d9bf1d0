package socket

import (
	"context"
	"strings"
	"time"

	"amora_server/chat"
	"amora_server/middleware"
	"amora_server/models"
	"amora_server/services"

	socketio "github.com/googollee/go-socket.io"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Events sent by the server besides the chat.Update kinds.
const (
	EventHistory = "chat.history"
	EventError   = "chat.error"
)

const eventTimeout = 10 * time.Second

var (
	errMissingPeer    = errors.New("user_id is required")
	errMissingChannel = errors.New("channel_id is required")
)

// Sessions hands out chat sessions.
type Sessions interface {
	Acquire(ctx context.Context, userID string) (*chat.Session, func(), error)
}

// MatchChecker resolves an active match between two users.
type MatchChecker interface {
	FindMatch(ctx context.Context, userID, otherID string) (*models.MatchWithProfile, error)
}

// Profiles reads profiles and writes the online flag.
type Profiles interface {
	PresenceWriter
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Payload is the body of every client event. Each event reads the fields it
// needs.
type Payload struct {
	UserID     string `json:"user_id"`
	ChannelID  string `json:"channel_id"`
	Text       string `json:"text"`
	Typing     bool   `json:"typing"`
	CallerName string `json:"caller_name"`
}

// History answers chat.open.
type History struct {
	ChannelID  string         `json:"channel_id"`
	PeerID     string         `json:"peer_id"`
	Messages   []chat.Message `json:"messages"`
	PeerTyping bool           `json:"peer_typing"`
	Call       chat.Call      `json:"call"`
}

// Failure reports a failed client event.
type Failure struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// emitter is the part of socketio.Conn the event handlers write to.
type emitter interface {
	Emit(event string, v ...interface{})
}

// connState is stored in the socket context for an authenticated connection.
type connState struct {
	userID      string
	session     *chat.Session
	release     func()
	unsubscribe func()
}

// Server is the socket.io gateway to the chat sessions.
type Server struct {
	*socketio.Server

	Auth     middleware.TokenVerifier
	Sessions Sessions
	Matches  MatchChecker
	Profiles Profiles
	Log      zerolog.Logger

	presence *presence
}

// NewSocketServer initializes and returns a new Socket.IO server
func NewSocketServer(auth middleware.TokenVerifier, sessions Sessions, matches MatchChecker, profiles Profiles, log zerolog.Logger) *Server {
	s := &Server{
		Server:   socketio.NewServer(nil),
		Auth:     auth,
		Sessions: sessions,
		Matches:  matches,
		Profiles: profiles,
		Log:      log.With().Str("component", "socket").Logger(),
	}
	s.presence = newPresence(profiles, s.Log)

	s.OnConnect("/", s.onConnect)

	s.on("chat.open", s.openChat)
	s.on("chat.send", s.sendMessage)
	s.on("typing", s.setTyping)
	s.on("chat.read", s.markRead)
	s.on("call.start", s.startCall)
	s.on("call.accept", s.acceptCall)
	s.on("call.decline", s.declineCall)
	s.on("call.end", s.endCall)

	s.OnError("/", func(c socketio.Conn, err error) {
		if c == nil {
			s.Log.Error().Err(err).Msg("❌ Socket error")
			return
		}
		s.Log.Error().Err(err).Str("socket_id", c.ID()).Msg("❌ Socket error")
	})

	s.OnDisconnect("/", func(c socketio.Conn, reason string) {
		st, ok := c.Context().(*connState)
		if !ok {
			return
		}
		c.SetContext(nil)
		st.unsubscribe()
		st.release()
		s.presence.disconnected(st.userID)
		s.Log.Info().Str("socket_id", c.ID()).Str("user_id", st.userID).Str("reason", reason).Msg("❌ Socket disconnected")
	})

	return s
}

func (s *Server) onConnect(c socketio.Conn) error {
	u := c.URL()
	id, err := s.Auth.Verify(u.Query().Get("token"))
	if err != nil {
		s.Log.Warn().Err(err).Str("socket_id", c.ID()).Msg("⚠️ Socket rejected")
		c.Emit(EventError, Failure{Event: "connect", Error: "Please sign in to continue"})
		_ = c.Close()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	session, release, err := s.Sessions.Acquire(ctx, id.UserID)
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", id.UserID).Msg("❌ Failed to start chat session")
		c.Emit(EventError, Failure{Event: "connect", Error: "Failed to connect to chat"})
		_ = c.Close()
		return err
	}

	unsubscribe := session.Subscribe(func(u chat.Update) {
		c.Emit(string(u.Kind), u)
	})
	c.SetContext(&connState{
		userID:      id.UserID,
		session:     session,
		release:     release,
		unsubscribe: unsubscribe,
	})
	s.presence.connected(id.UserID)

	snap := session.Unread().Snapshot()
	c.Emit(string(chat.UpdateUnread), chat.Update{Kind: chat.UpdateUnread, Unread: &snap})
	s.Log.Info().Str("socket_id", c.ID()).Str("user_id", id.UserID).Msg("✅ Socket connected")
	return nil
}

type eventHandler func(ctx context.Context, out emitter, st *connState, p Payload) error

// on registers fn for event. Failures are reported to the socket as
// EventError.
func (s *Server) on(event string, fn eventHandler) {
	s.OnEvent("/", event, func(c socketio.Conn, p Payload) {
		st, _ := c.Context().(*connState)
		s.dispatch(event, c, st, p, fn)
	})
}

func (s *Server) dispatch(event string, out emitter, st *connState, p Payload, fn eventHandler) {
	if st == nil {
		out.Emit(EventError, Failure{Event: event, Error: "Please sign in to continue"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := fn(ctx, out, st, p); err != nil {
		msg := userMessage(err)
		s.Log.Warn().Err(err).Str("event", event).Str("user_id", st.userID).Msg("⚠️ " + msg)
		out.Emit(EventError, Failure{Event: event, Error: msg})
	}
}

// conversation opens the conversation with a matched peer.
func (s *Server) conversation(ctx context.Context, st *connState, peerID string) (*chat.Conversation, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, errMissingPeer
	}
	if _, err := s.Matches.FindMatch(ctx, st.userID, peerID); err != nil {
		return nil, err
	}
	return st.session.Conversation(ctx, peerID)
}

func (s *Server) openChat(ctx context.Context, out emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	out.Emit(EventHistory, History{
		ChannelID:  conv.ChannelID(),
		PeerID:     conv.PeerID(),
		Messages:   conv.Messages(),
		PeerTyping: conv.PeerTyping(),
		Call:       conv.Call(),
	})
	return nil
}

func (s *Server) sendMessage(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	_, err = conv.SendText(ctx, p.Text)
	return err
}

func (s *Server) setTyping(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	return conv.SetTyping(ctx, p.Typing)
}

func (s *Server) markRead(ctx context.Context, _ emitter, st *connState, p Payload) error {
	if p.ChannelID == "" {
		return errMissingChannel
	}
	return st.session.Unread().MarkRead(ctx, p.ChannelID)
}

func (s *Server) startCall(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(p.CallerName)
	if name == "" {
		name = s.displayName(ctx, st.userID)
	}
	_, err = conv.StartCall(ctx, name)
	return err
}

func (s *Server) acceptCall(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	_, err = conv.AcceptCall(ctx)
	return err
}

func (s *Server) declineCall(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	conv.DeclineCall()
	return nil
}

func (s *Server) endCall(ctx context.Context, _ emitter, st *connState, p Payload) error {
	conv, err := s.conversation(ctx, st, p.UserID)
	if err != nil {
		return err
	}
	conv.EndCall()
	return nil
}

func (s *Server) displayName(ctx context.Context, userID string) string {
	profile, err := s.Profiles.GetUserProfile(ctx, userID)
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("⚠️ no caller name")
		return ""
	}
	if profile.FullName != "" {
		return profile.FullName
	}
	return profile.Username
}

// userMessage is the text shown to the user for a failed event.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errMissingPeer), errors.Is(err, errMissingChannel),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrCallInProgress),
		errors.Is(err, chat.ErrNoIncomingCall):
		return errors.Cause(err).Error()
	case errors.Is(err, services.ErrNotMatched):
		return "This person is not one of your matches"
	case errors.Is(err, services.ErrNotChannelMember):
		return "You are not part of this conversation"
	case errors.Is(err, chat.ErrSessionClosed):
		return "Your chat session has ended, please reconnect"
	default:
		return "Something went wrong, please try again"
	}
}
