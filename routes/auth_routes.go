package routes

import (
	"amora_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterPublicAuthRoutes sets up the password reset flow, reachable
// without a session.
func RegisterPublicAuthRoutes(r *mux.Router, controller *controllers.AuthController) {
	r.HandleFunc("/api/auth/otp", controller.SendOTP).Methods("POST")
	r.HandleFunc("/api/auth/reset-password", controller.ResetPassword).Methods("POST")
}

// RegisterAuthRoutes sets up session routes under the authenticated api router
func RegisterAuthRoutes(api *mux.Router, controller *controllers.AuthController) {
	api.HandleFunc("/auth/me", controller.Me).Methods("GET")
	api.HandleFunc("/auth/signout", controller.SignOut).Methods("POST")
}
