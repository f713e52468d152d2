package routes

import (
	"log/slog"

	"chat_server/controllers"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRequestRoutes sets up routes for chat requests under /chat-requests
func RegisterChatRequestRoutes(r *mux.Router, service *services.ChatRequestService, logger *slog.Logger) {
	controller := controllers.NewChatRequestController(service, logger)

	requestRouter := r.PathPrefix("/chat-requests").Subrouter()
	requestRouter.HandleFunc("/send/{receiverId}", controller.HandleSend).Methods("POST")
	requestRouter.HandleFunc("/accept/{requestId}", controller.HandleAccept).Methods("PUT")
	requestRouter.HandleFunc("/reject/{requestId}", controller.HandleReject).Methods("PUT")
	requestRouter.HandleFunc("/pending", controller.HandlePending).Methods("GET")
	requestRouter.HandleFunc("/accepted", controller.HandleAccepted).Methods("GET")
}
