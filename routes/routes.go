package routes

import (
	"net/http"

	"amora_server/controllers"
	"amora_server/helpers"
	"amora_server/middleware"
	"amora_server/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Dependencies are the services behind the HTTP API.
type Dependencies struct {
	Auth     *services.AuthService
	Profiles *services.UserProfileService
	Matches  *services.MatchService
	Geocoder *services.GeocodeService
	Storage  *services.S3Service
	Sessions controllers.SessionSource
	Log      zerolog.Logger
}

// RegisterRoutes sets up the routes for the application and returns the
// authenticated /api subrouter.
func RegisterRoutes(r *mux.Router, deps Dependencies) *mux.Router {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/welcome", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/privacy-policy", PrivacyPolicyHandler).Methods("GET")

	authController := controllers.NewAuthController(deps.Auth, deps.Profiles, deps.Sessions, deps.Log)
	RegisterPublicAuthRoutes(r, authController)

	// everything below needs a session
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteError(w, http.StatusNotFound, "Not found")
	})
	api.Use(middleware.RequestLogger(deps.Log), middleware.RequireAuth(deps.Auth))

	RegisterAuthRoutes(api, authController)
	RegisterUserProfileRoutes(api, controllers.NewUserProfileController(deps.Profiles, deps.Geocoder, deps.Log))
	RegisterS3Routes(api, controllers.NewS3Controller(deps.Storage, deps.Log))

	// and a completed profile
	gated := api.NewRoute().Subrouter()
	gated.Use(middleware.RequireCompletedProfile(deps.Profiles, deps.Log))

	RegisterMatchRoutes(gated, controllers.NewMatchController(deps.Matches, deps.Sessions, deps.Log))
	RegisterChatRoutes(gated, controllers.NewChatController(deps.Matches, deps.Profiles, deps.Sessions, deps.Log))
	return api
}
