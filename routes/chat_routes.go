package routes

import (
	"log/slog"

	"chat_server/controllers"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// RegisterMessageRoutes sets up routes for 1:1 messages under /messages
func RegisterMessageRoutes(r *mux.Router, service *services.MessageService, logger *slog.Logger) {
	controller := controllers.NewMessageController(service, logger)

	messageRouter := r.PathPrefix("/messages").Subrouter()
	messageRouter.HandleFunc("/send/{userId}", controller.HandleSendMessage).Methods("POST")
	messageRouter.HandleFunc("/{userId}", controller.HandleGetMessages).Methods("GET")
}
