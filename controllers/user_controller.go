package controllers

import (
	"log/slog"
	"net/http"

	"chat_server/middleware"
	"chat_server/presence"
	"chat_server/services"
)

// UserController serves /api/users.
type UserController struct {
	Service   *services.UserService
	Directory *presence.Directory
	Logger    *slog.Logger
}

// NewUserController initializes the user controller
func NewUserController(service *services.UserService, dir *presence.Directory, logger *slog.Logger) *UserController {
	return &UserController{Service: service, Directory: dir, Logger: logger}
}

// HandleListUsers - GET / returns every user but the caller.
func (c *UserController) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.Service.ListUsers(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleOnlineUsers - GET /online
func (c *UserController) HandleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	online := []string{}
	if c.Directory != nil {
		online = c.Directory.Online()
	}
	writeJSON(w, http.StatusOK, online)
}
