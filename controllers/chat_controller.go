package controllers

import (
	"context"
	"net/http"
	"sort"

	"amora_server/chat"
	"amora_server/helpers"
	"amora_server/models"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const chatListLimit = 100

// ProfileReader reads user profiles.
type ProfileReader interface {
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// ChatController serves the chat list, conversations and call signaling.
type ChatController struct {
	Matches  MatchFinder
	Profiles ProfileReader
	Sessions SessionSource
	Log      zerolog.Logger
}

// NewChatController initializes the chat controller
func NewChatController(matches MatchFinder, profiles ProfileReader, sessions SessionSource, log zerolog.Logger) *ChatController {
	return &ChatController{
		Matches:  matches,
		Profiles: profiles,
		Sessions: sessions,
		Log:      log.With().Str("controller", "chat").Logger(),
	}
}

// ListChats returns the caller's matches joined with their channel's last
// message and unread count, most recent activity first.
func (c *ChatController) ListChats(w http.ResponseWriter, r *http.Request) {
	me := userID(r)
	matches, err := c.Matches.GetMatchedProfiles(r.Context(), me)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load chats")
		return
	}

	session, release, err := c.Sessions.Acquire(r.Context(), me)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to connect to chat")
		return
	}
	defer release()

	channels, err := session.Client().QueryChannels(r.Context(), chatListLimit)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load chats")
		return
	}
	byID := make(map[string]chat.ChannelState, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	items := make([]models.ChatListItem, 0, len(matches))
	for _, m := range matches {
		item := models.ChatListItem{MatchWithProfile: m}
		if ch, ok := byID[m.ChannelID]; ok {
			item.Unread = ch.Unread
			if last := ch.LastMessage; last != nil {
				item.LastMessage = last.Text
				item.LastMessageAt = last.CreatedAt.UTC().Format(models.TimestampLayout)
				item.LastMessageMine = last.SenderID == me
			}
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return activity(items[i]) > activity(items[j])
	})
	helpers.WriteJSONResponse(w, http.StatusOK, items)
}

func activity(item models.ChatListItem) string {
	if item.LastMessageAt != "" {
		return item.LastMessageAt
	}
	return item.MatchedAt
}

// withConversation resolves the match with {userId}, acquires the caller's
// session and runs fn on the conversation.
func (c *ChatController) withConversation(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, s *chat.Session, conv *chat.Conversation, match *models.MatchWithProfile)) {
	me := userID(r)
	match, err := c.Matches.FindMatch(r.Context(), me, mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load conversation")
		return
	}

	session, release, err := c.Sessions.Acquire(r.Context(), me)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to connect to chat")
		return
	}
	defer release()

	conv, err := session.Conversation(r.Context(), match.Profile.ID)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to open conversation")
		return
	}
	fn(r.Context(), session, conv, match)
}

// OpenChat returns the conversation with {userId}: history, call state and
// the peer's typing flag.
func (c *ChatController) OpenChat(w http.ResponseWriter, r *http.Request) {
	c.withConversation(w, r, func(_ context.Context, _ *chat.Session, conv *chat.Conversation, match *models.MatchWithProfile) {
		helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
			"match":       match,
			"channel_id":  conv.ChannelID(),
			"messages":    conv.Messages(),
			"call":        conv.Call(),
			"peer_typing": conv.PeerTyping(),
		})
	})
}

// SendMessage sends a text message to {userId}.
func (c *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	c.withConversation(w, r, func(ctx context.Context, _ *chat.Session, conv *chat.Conversation, _ *models.MatchWithProfile) {
		msg, err := conv.SendText(ctx, payload.Text)
		if err != nil {
			writeServiceError(w, c.Log, err, "Failed to send message")
			return
		}
		helpers.WriteJSONResponse(w, http.StatusCreated, msg)
	})
}

// SetTyping forwards the caller's typing state.
func (c *ChatController) SetTyping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Typing bool `json:"typing"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	c.withConversation(w, r, func(ctx context.Context, _ *chat.Session, conv *chat.Conversation, _ *models.MatchWithProfile) {
		if err := conv.SetTyping(ctx, payload.Typing); err != nil {
			writeServiceError(w, c.Log, err, "Failed to update typing state")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// MarkRead marks the conversation with {userId} read.
func (c *ChatController) MarkRead(w http.ResponseWriter, r *http.Request) {
	c.withConversation(w, r, func(ctx context.Context, s *chat.Session, conv *chat.Conversation, _ *models.MatchWithProfile) {
		if err := s.Unread().MarkRead(ctx, conv.ChannelID()); err != nil {
			writeServiceError(w, c.Log, err, "Failed to mark messages as read")
			return
		}
		helpers.WriteJSONResponse(w, http.StatusOK, s.Unread().Snapshot())
	})
}

// GetUnread returns the caller's unread counts.
func (c *ChatController) GetUnread(w http.ResponseWriter, r *http.Request) {
	me := userID(r)
	session, release, err := c.Sessions.Acquire(r.Context(), me)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to connect to chat")
		return
	}
	defer release()

	tracker := session.Unread()
	if err := tracker.Recompute(r.Context()); err != nil {
		c.Log.Warn().Err(err).Str("user", me).Msg("⚠️ unread recompute failed, using tracked counts")
	}
	helpers.WriteJSONResponse(w, http.StatusOK, tracker.Snapshot())
}

// liveConversation returns the conversation with {userId} of the caller's
// live session. Call state only exists while a realtime connection holds
// the session, so calls without one are rejected.
func (c *ChatController) liveConversation(w http.ResponseWriter, r *http.Request) (*chat.Conversation, bool) {
	me := userID(r)
	match, err := c.Matches.FindMatch(r.Context(), me, mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load conversation")
		return nil, false
	}
	session, ok := c.Sessions.Lookup(me)
	if !ok {
		helpers.WriteError(w, http.StatusConflict, "Open the app to make calls")
		return nil, false
	}
	conv, err := session.Conversation(r.Context(), match.Profile.ID)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to open conversation")
		return nil, false
	}
	return conv, true
}

// StartCall invites {userId} to a video call.
func (c *ChatController) StartCall(w http.ResponseWriter, r *http.Request) {
	conv, ok := c.liveConversation(w, r)
	if !ok {
		return
	}
	call, err := conv.StartCall(r.Context(), c.callerName(r.Context(), userID(r)))
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to start call")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, call)
}

// AcceptCall accepts the pending invitation from {userId}.
func (c *ChatController) AcceptCall(w http.ResponseWriter, r *http.Request) {
	conv, ok := c.liveConversation(w, r)
	if !ok {
		return
	}
	call, err := conv.AcceptCall(r.Context())
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to accept call")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, call)
}

// DeclineCall drops the pending invitation from {userId}.
func (c *ChatController) DeclineCall(w http.ResponseWriter, r *http.Request) {
	conv, ok := c.liveConversation(w, r)
	if !ok {
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, conv.DeclineCall())
}

// EndCall hangs up the call with {userId}.
func (c *ChatController) EndCall(w http.ResponseWriter, r *http.Request) {
	conv, ok := c.liveConversation(w, r)
	if !ok {
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, conv.EndCall())
}

func (c *ChatController) callerName(ctx context.Context, me string) string {
	profile, err := c.Profiles.GetUserProfile(ctx, me)
	if err != nil {
		c.Log.Warn().Err(err).Str("user", me).Msg("⚠️ caller profile unavailable")
		return ""
	}
	if profile.FullName != "" {
		return profile.FullName
	}
	return profile.Username
}
