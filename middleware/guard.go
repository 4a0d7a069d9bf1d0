// Package middleware holds the HTTP interceptors: the page route guard, API
// authentication and request logging.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

const (
	LoginRoute       = "/auth"
	HomeRoute        = "/"
	ProfileEditRoute = "/profile/edit"
)

var (
	// never guarded
	excludedFile = regexp.MustCompile(`\.(svg|png|jpg|jpeg|gif|webp)$`)
	// reachable with an incomplete profile
	staticAsset = regexp.MustCompile(`\.(png|jpg|jpeg|gif|svg|ico|css|js)$`)
)

// Decision is the outcome of the route guard for one request. Redirect is
// empty when the request may proceed.
type Decision struct {
	Redirect string
}

// Allowed reports whether the request proceeds.
func (d Decision) Allowed() bool { return d.Redirect == "" }

// Excluded reports whether path bypasses the guard entirely.
func Excluded(path string) bool {
	return strings.HasPrefix(path, "/_next/static") ||
		strings.HasPrefix(path, "/_next/image") ||
		path == "/favicon.ico" ||
		excludedFile.MatchString(path)
}

// Decide evaluates the route guard table for path. completed is ignored for
// unauthenticated requests.
func Decide(path string, authenticated, completed bool) Decision {
	if Excluded(path) {
		return Decision{}
	}
	isLogin := strings.HasPrefix(path, LoginRoute)

	if !authenticated {
		if isLogin || path == HomeRoute {
			return Decision{}
		}
		return Decision{Redirect: LoginRoute}
	}

	if !completed {
		if path == ProfileEditRoute || staticAsset.MatchString(path) {
			return Decision{}
		}
		return Decision{Redirect: ProfileEditRoute}
	}
	if isLogin {
		return Decision{Redirect: HomeRoute}
	}
	return Decision{}
}

// RouteGuard redirects page requests according to Decide. The completion
// flag is read fresh for every request; a failed read counts as incomplete.
func RouteGuard(auth TokenVerifier, profiles ProfileChecker, log zerolog.Logger) func(http.Handler) http.Handler {
	log = log.With().Str("component", "route-guard").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if Excluded(path) {
				next.ServeHTTP(w, r)
				return
			}

			authenticated, completed := false, false
			if id, err := auth.Verify(TokenFromRequest(r)); err == nil {
				authenticated = true
				completed = profileCompleted(r.Context(), profiles, id.UserID, log)
				r = r.WithContext(WithIdentity(r.Context(), id))
			}

			d := Decide(path, authenticated, completed)
			if !d.Allowed() {
				log.Debug().Str("path", path).Str("redirect", d.Redirect).Bool("authenticated", authenticated).Msg("↪️ redirecting")
				http.Redirect(w, r, d.Redirect, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func profileCompleted(ctx context.Context, profiles ProfileChecker, userID string, log zerolog.Logger) bool {
	completed, err := profiles.IsProfileCompleted(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("⚠️ profile completion lookup failed")
		return false
	}
	return completed
}
