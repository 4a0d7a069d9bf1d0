package routes

import (
	"amora_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterS3Routes sets up routes for S3-related operations
func RegisterS3Routes(api *mux.Router, controller *controllers.S3Controller) {
	api.HandleFunc("/profile/photos/upload-url", controller.GeneratePresignedURL).Methods("POST")
	api.HandleFunc("/profile/photos/read-url", controller.GetPresignedReadURL).Methods("POST")
}
