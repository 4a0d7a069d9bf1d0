package controllers

import (
	"context"
	"net/http"

	"amora_server/helpers"
	"amora_server/models"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// MatchFinder reads the matches of a user.
type MatchFinder interface {
	GetMatchedProfiles(ctx context.Context, userID string) ([]models.MatchWithProfile, error)
	FindMatch(ctx context.Context, userID, otherID string) (*models.MatchWithProfile, error)
}

// MatchController handles HTTP requests for match-related actions
type MatchController struct {
	Matches  MatchFinder
	Sessions SessionSource
	Log      zerolog.Logger
}

// NewMatchController creates a new MatchController instance
func NewMatchController(matches MatchFinder, sessions SessionSource, log zerolog.Logger) *MatchController {
	return &MatchController{
		Matches:  matches,
		Sessions: sessions,
		Log:      log.With().Str("controller", "match").Logger(),
	}
}

// GetMatches lists the caller's matches with the unread count of each chat.
func (c *MatchController) GetMatches(w http.ResponseWriter, r *http.Request) {
	me := userID(r)
	matches, err := c.Matches.GetMatchedProfiles(r.Context(), me)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load matches")
		return
	}

	counts := c.unreadCounts(r.Context(), me)
	for i := range matches {
		matches[i].Unread = counts[matches[i].ChannelID]
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

// GetMatch returns one match, 404 when {userId} is not matched with the caller.
func (c *MatchController) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := c.Matches.FindMatch(r.Context(), userID(r), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load match")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, match)
}

// unreadCounts returns per-channel unread counts, empty when the chat
// provider is unavailable.
func (c *MatchController) unreadCounts(ctx context.Context, me string) map[string]int {
	session, release, err := c.Sessions.Acquire(ctx, me)
	if err != nil {
		c.Log.Warn().Err(err).Str("user", me).Msg("⚠️ chat unavailable, listing matches without unread counts")
		return map[string]int{}
	}
	defer release()

	tracker := session.Unread()
	if err := tracker.Recompute(ctx); err != nil {
		c.Log.Warn().Err(err).Str("user", me).Msg("⚠️ unread recompute failed, using tracked counts")
	}
	return tracker.Snapshot().ByChannel
}
