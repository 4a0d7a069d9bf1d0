package controllers

import (
	"context"
	"net/http"

	"amora_server/chat"
	"amora_server/helpers"
	"amora_server/middleware"
	"amora_server/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// SessionSource hands out the chat sessions of users.
type SessionSource interface {
	Acquire(ctx context.Context, userID string) (*chat.Session, func(), error)
	Lookup(userID string) (*chat.Session, bool)
	End(userID string)
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the Amora API."})
}

// userID returns the authenticated user of r. Routes are mounted behind
// middleware.RequireAuth, so a missing identity is a wiring bug.
func userID(r *http.Request) string {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return ""
	}
	return id.UserID
}

// writeServiceError maps service errors to a status and a user-facing
// message. Unexpected errors are logged and reported with fallback.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		helpers.WriteJSONResponse(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Please fill in all required fields",
			"fields": verr.Fields,
		})
	case errors.Is(err, services.ErrTooManyHobbies),
		errors.Is(err, services.ErrTooManyPhotos),
		errors.Is(err, services.ErrUnsupportedContentType),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrPasswordMismatch),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, chat.ErrEmptyMessage):
		helpers.WriteError(w, http.StatusBadRequest, errors.Cause(err).Error())
	case errors.Is(err, services.ErrNotMatched):
		helpers.WriteError(w, http.StatusNotFound, "This person is not one of your matches")
	case errors.Is(err, services.ErrNotChannelMember):
		helpers.WriteError(w, http.StatusForbidden, "You are not part of this conversation")
	case errors.Is(err, chat.ErrCallInProgress), errors.Is(err, chat.ErrNoIncomingCall):
		helpers.WriteError(w, http.StatusConflict, errors.Cause(err).Error())
	default:
		log.Error().Err(err).Msg("❌ " + fallback)
		helpers.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
