package routes

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"amora_server/middleware"

	"github.com/gorilla/mux"
)

// RegisterPageRoutes serves the built web client from webRoot behind the
// route guard. It must be registered after every other route.
func RegisterPageRoutes(r *mux.Router, deps Dependencies, webRoot string) {
	guard := middleware.RouteGuard(deps.Auth, deps.Profiles, deps.Log)
	r.PathPrefix("/").Handler(guard(PageHandler(webRoot)))
}

// PageHandler serves files under root. Paths without a file fall back to
// index.html so that client side routes load the app.
func PageHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(root, "index.html"))
	})
}
