package routes

import (
	"amora_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for match-related operations under /api/matches
func RegisterMatchRoutes(api *mux.Router, controller *controllers.MatchController) {
	api.HandleFunc("/matches", controller.GetMatches).Methods("GET")
	api.HandleFunc("/matches/{userId}", controller.GetMatch).Methods("GET")
}
