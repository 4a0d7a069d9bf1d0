package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"amora_server/helpers"
	"amora_server/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// SessionCookie carries the access token of browser sessions.
const SessionCookie = "sb-access-token"

// TokenVerifier resolves a session token to an identity.
type TokenVerifier interface {
	Verify(token string) (*services.Identity, error)
}

// ProfileChecker reads the profile completion flag.
type ProfileChecker interface {
	IsProfileCompleted(ctx context.Context, userID string) (bool, error)
}

type identityKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *services.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by RequireAuth or RouteGuard.
func IdentityFrom(ctx context.Context) (*services.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*services.Identity)
	return id, ok && id != nil
}

// TokenFromRequest returns the bearer token of r, falling back to the
// session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects API requests without a valid session with 401.
func RequireAuth(auth TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Verify(TokenFromRequest(r))
			if err != nil {
				helpers.WriteError(w, http.StatusUnauthorized, "Please sign in to continue")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireCompletedProfile rejects requests of users whose profile is not
// complete with 403. It must run after RequireAuth.
func RequireCompletedProfile(profiles ProfileChecker, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				helpers.WriteError(w, http.StatusUnauthorized, "Please sign in to continue")
				return
			}
			if !profileCompleted(r.Context(), profiles, id.UserID, log) {
				helpers.WriteJSONResponse(w, http.StatusForbidden, map[string]string{
					"error":    "Please complete your profile first",
					"redirect": ProfileEditRoute,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ev := log.Info()
			if rec.status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
