package routes

import (
	"log/slog"

	"chat_server/controllers"
	"chat_server/presence"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// RegisterUserRoutes sets up routes for user discovery under /users
func RegisterUserRoutes(r *mux.Router, service *services.UserService, dir *presence.Directory, logger *slog.Logger) {
	controller := controllers.NewUserController(service, dir, logger)

	userRouter := r.PathPrefix("/users").Subrouter()
	userRouter.HandleFunc("", controller.HandleListUsers).Methods("GET")
	userRouter.HandleFunc("/online", controller.HandleOnlineUsers).Methods("GET")
}
