package routes

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"amora_server/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*mux.Router, *services.AuthService) {
	t.Helper()
	auth := services.NewAuthService("http://127.0.0.1:1", "anon", "secret", zerolog.Nop())
	r := mux.NewRouter()
	RegisterRoutes(r, Dependencies{Auth: auth, Log: zerolog.Nop()})
	return r, auth
}

func serve(r http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(`{"email":"a@b.c"}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/privacy-policy", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Amora")

	rec = serve(r, http.MethodPost, "/api/auth/otp", "")
	assert.Equal(t, http.StatusOK, rec.Code, "otp requests never reveal failures")
}

func TestAPIRoutesRequireSession(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, target := range []string{"/api/profile", "/api/matches", "/api/chats", "/api/unread", "/api/auth/me"} {
		rec := serve(r, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := serve(r, http.MethodGet, "/api/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeReturnsIdentity(t *testing.T) {
	r, auth := newTestRouter(t)
	token, err := auth.IssueToken("u1", "linh@example.com", time.Hour)
	require.NoError(t, err)

	rec := serve(r, http.MethodGet, "/api/auth/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","email":"linh@example.com"}`, rec.Body.String())
}

func TestPageRoutesAreGuarded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>amora</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte("png"), 0o644))

	r, _ := newTestRouter(t)
	RegisterPageRoutes(r, Dependencies{Auth: services.NewAuthService("", "", "secret", zerolog.Nop()), Log: zerolog.Nop()}, root)

	rec := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amora")

	rec = serve(r, http.MethodGet, "/auth", "")
	assert.Equal(t, http.StatusOK, rec.Code, "unknown pages load the app")
	assert.Contains(t, rec.Body.String(), "amora")

	rec = serve(r, http.MethodGet, "/matches", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))

	rec = serve(r, http.MethodGet, "/logo.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "api routes win over pages")
}
