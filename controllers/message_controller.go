package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"chat_server/middleware"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// maxMessageBody caps send bodies; images arrive inline as data URLs.
const maxMessageBody = 8 << 20

// MessageController serves /api/messages.
type MessageController struct {
	Service *services.MessageService
	Logger  *slog.Logger
}

// NewMessageController initializes the message controller
func NewMessageController(service *services.MessageService, logger *slog.Logger) *MessageController {
	return &MessageController{Service: service, Logger: logger}
}

// HandleGetMessages - GET /{userId}?limit=N
func (c *MessageController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultMessageLimit
	}
	msgs, err := c.Service.ListMessages(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["userId"], limit)
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleSendMessage - POST /send/{userId}
func (c *MessageController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody)).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := c.Service.SendMessage(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["userId"], in)
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
