package controllers

import (
	"context"
	"net/http"

	"amora_server/helpers"
	"amora_server/middleware"
	"amora_server/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// PasswordResetter runs the OTP password reset flow and sign out.
type PasswordResetter interface {
	SendPasswordResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, r services.PasswordReset) error
	SignOut(ctx context.Context, token string) error
}

// PresenceWriter stores the online flag.
type PresenceWriter interface {
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
}

// AuthController serves the password reset flow and sign out.
type AuthController struct {
	Auth     PasswordResetter
	Presence PresenceWriter
	Sessions SessionSource
	Log      zerolog.Logger
}

func NewAuthController(auth PasswordResetter, presence PresenceWriter, sessions SessionSource, log zerolog.Logger) *AuthController {
	return &AuthController{
		Auth:     auth,
		Presence: presence,
		Sessions: sessions,
		Log:      log.With().Str("controller", "auth").Logger(),
	}
}

// SendOTP emails a reset code. The response does not reveal whether the
// address has an account.
func (c *AuthController) SendOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := c.Auth.SendPasswordResetOTP(r.Context(), payload.Email); err != nil {
		if errors.Is(err, services.ErrEmailRequired) {
			writeServiceError(w, c.Log, err, "")
			return
		}
		c.Log.Warn().Err(err).Msg("⚠️ otp request failed")
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{
		"message": "If the address has an account, a verification code is on its way",
	})
}

// ResetPassword verifies the code and sets the new password.
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload services.PasswordReset
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := c.Auth.ResetPassword(r.Context(), payload); err != nil {
		writeServiceError(w, c.Log, err, "Failed to reset password")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Password updated, please sign in"})
}

// SignOut ends the caller's chat session, marks them offline and revokes
// the token.
func (c *AuthController) SignOut(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "Please sign in to continue")
		return
	}
	c.Sessions.End(id.UserID)
	if err := c.Presence.SetOnlineStatus(r.Context(), id.UserID, false); err != nil {
		c.Log.Warn().Err(err).Str("user", id.UserID).Msg("⚠️ failed to mark user offline")
	}
	if err := c.Auth.SignOut(r.Context(), id.Token); err != nil {
		c.Log.Warn().Err(err).Str("user", id.UserID).Msg("⚠️ token revocation failed")
	}

	http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// Me returns the authenticated identity.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	helpers.WriteJSONResponse(w, http.StatusOK, id)
}
