package socket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chat_server/middleware"
	"chat_server/models"
	"chat_server/presence"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketServer serves /ws: the same push events as socket.io, framed as
// PushFrame JSON, for Go and CLI clients.
type WebSocketServer struct {
	Directory  *presence.Directory
	Verifier   middleware.TokenVerifier
	Logger     *slog.Logger
	OutboxSize int

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*presence.Outbox]struct{}
}

func NewWebSocketServer(dir *presence.Directory, verifier middleware.TokenVerifier, logger *slog.Logger, outboxSize int) *WebSocketServer {
	return &WebSocketServer{
		Directory:  dir,
		Verifier:   verifier,
		Logger:     logger,
		OutboxSize: outboxSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*presence.Outbox]struct{}),
	}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.TokenFromRequest(r)
	}
	userID, err := s.Verifier.Verify(token)
	if err != nil {
		http.Error(w, `{"message": "Unauthorized - Invalid token"}`, http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Error("failed to upgrade the websocket", "error", err)
		return
	}

	outbox := presence.NewOutbox("ws-"+uuid.NewString(), s.OutboxSize, func(event string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(models.PushFrame{Event: event, Data: data})
	}, s.Logger)

	s.mu.Lock()
	s.conns[outbox] = struct{}{}
	s.mu.Unlock()
	s.Directory.Register(userID, outbox)
	s.Logger.Info("websocket connected", "conn", outbox.ID(), "user", userID)

	go s.keepalive(ws, outbox)
	s.readLoop(ws)

	outbox.Close()
	s.Directory.Unregister(userID, outbox)
	s.mu.Lock()
	delete(s.conns, outbox)
	s.mu.Unlock()
	ws.Close()
	s.Logger.Info("websocket disconnected", "conn", outbox.ID(), "user", userID)
}

// readLoop discards inbound frames and returns when the peer goes away.
func (s *WebSocketServer) readLoop(ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) keepalive(ws *websocket.Conn, outbox *presence.Outbox) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-outbox.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// BroadcastOnline queues the online user list on every /ws connection.
func (s *WebSocketServer) BroadcastOnline(online []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for outbox := range s.conns {
		if err := outbox.Send(models.EventOnlineUsers, online); err != nil {
			s.Logger.Debug("online list dropped", "conn", outbox.ID(), "error", err)
		}
	}
}
