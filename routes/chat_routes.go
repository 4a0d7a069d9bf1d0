package routes

import (
	"amora_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up chat routes under /api/chats and call
// signaling under /api/calls
func RegisterChatRoutes(api *mux.Router, controller *controllers.ChatController) {
	api.HandleFunc("/unread", controller.GetUnread).Methods("GET")

	api.HandleFunc("/chats", controller.ListChats).Methods("GET")
	api.HandleFunc("/chats/{userId}", controller.OpenChat).Methods("GET")
	api.HandleFunc("/chats/{userId}/messages", controller.SendMessage).Methods("POST")
	api.HandleFunc("/chats/{userId}/typing", controller.SetTyping).Methods("POST")
	api.HandleFunc("/chats/{userId}/read", controller.MarkRead).Methods("POST")

	api.HandleFunc("/calls/{userId}/start", controller.StartCall).Methods("POST")
	api.HandleFunc("/calls/{userId}/accept", controller.AcceptCall).Methods("POST")
	api.HandleFunc("/calls/{userId}/decline", controller.DeclineCall).Methods("POST")
	api.HandleFunc("/calls/{userId}/end", controller.EndCall).Methods("POST")
}
