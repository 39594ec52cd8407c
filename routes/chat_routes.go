package routes

import (
	"skillxchange_server/controllers"
	"skillxchange_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for chat-related operations under /api/chat
func RegisterChatRoutes(r *mux.Router, chatService *services.ChatService) {
	// Initialize the controller with the ChatService
	controller := controllers.NewChatController(chatService)

	// Create a subrouter for /api/chat
	chatRouter := r.PathPrefix("/api/chat").Subrouter()

	// Define routes and their corresponding handlers
	chatRouter.HandleFunc("/access", controller.HandleAccessChat).Methods("POST")
	chatRouter.HandleFunc("/message", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/message/delete", controller.HandleDeleteMessage).Methods("POST")
	chatRouter.HandleFunc("/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/messages/mark-as-read", controller.HandleMarkAsRead).Methods("POST")
	chatRouter.HandleFunc("/delete", controller.HandleDeleteChat).Methods("POST")
	chatRouter.HandleFunc("/rooms/{userId}", controller.HandleGetRooms).Methods("GET")
}
