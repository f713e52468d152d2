package controllers

import (
	"log/slog"
	"net/http"

	"chat_server/middleware"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// ChatRequestController serves /api/chat-requests.
type ChatRequestController struct {
	Service *services.ChatRequestService
	Logger  *slog.Logger
}

// NewChatRequestController initializes the chat request controller
func NewChatRequestController(service *services.ChatRequestService, logger *slog.Logger) *ChatRequestController {
	return &ChatRequestController{Service: service, Logger: logger}
}

// HandleSend - POST /send/{receiverId}
func (c *ChatRequestController) HandleSend(w http.ResponseWriter, r *http.Request) {
	req, err := c.Service.SendRequest(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["receiverId"])
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// HandleAccept - PUT /accept/{requestId}
func (c *ChatRequestController) HandleAccept(w http.ResponseWriter, r *http.Request) {
	req, err := c.Service.AcceptRequest(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["requestId"])
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleReject - PUT /reject/{requestId}
func (c *ChatRequestController) HandleReject(w http.ResponseWriter, r *http.Request) {
	req, err := c.Service.RejectRequest(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["requestId"])
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandlePending - GET /pending
func (c *ChatRequestController) HandlePending(w http.ResponseWriter, r *http.Request) {
	views, err := c.Service.ListPending(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleAccepted - GET /accepted
func (c *ChatRequestController) HandleAccepted(w http.ResponseWriter, r *http.Request) {
	users, err := c.Service.ListAccepted(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
