package routes

import (
	"amora_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterUserProfileRoutes sets up routes for the profile editor under /api/profile
func RegisterUserProfileRoutes(api *mux.Router, controller *controllers.UserProfileController) {
	api.HandleFunc("/hobbies", controller.ListHobbies).Methods("GET")
	api.HandleFunc("/profile", controller.GetProfile).Methods("GET")
	api.HandleFunc("/profile", controller.UpdateProfile).Methods("PUT")
	api.HandleFunc("/profile/location", controller.ResolveLocation).Methods("POST")
	api.HandleFunc("/profile/hobbies/{hobbyId}", controller.ToggleHobby).Methods("POST")
	api.HandleFunc("/profile/photos", controller.AddPhoto).Methods("POST")
	api.HandleFunc("/profile/photos", controller.RemovePhoto).Methods("DELETE")
	api.HandleFunc("/profile/online", controller.SetOnline).Methods("POST")
}
