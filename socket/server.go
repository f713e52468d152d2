package socket

import (
	"log/slog"
	"net/http"

	"chat_server/middleware"
	"chat_server/models"
	"chat_server/presence"

	socketio "github.com/googollee/go-socket.io"
)

// SocketServer is the socket.io push transport for browser clients. Each
// authenticated connection gets an Outbox registered in the Directory under
// its user id.
type SocketServer struct {
	IO         *socketio.Server
	Directory  *presence.Directory
	Verifier   middleware.TokenVerifier
	Logger     *slog.Logger
	OutboxSize int
}

type connState struct {
	userID string
	outbox *presence.Outbox
}

// NewSocketServer initializes the socket.io server and its handlers. The
// caller runs Serve and mounts it at /socket.io/.
func NewSocketServer(dir *presence.Directory, verifier middleware.TokenVerifier, logger *slog.Logger, outboxSize int) *SocketServer {
	s := &SocketServer{
		IO:         socketio.NewServer(nil),
		Directory:  dir,
		Verifier:   verifier,
		Logger:     logger,
		OutboxSize: outboxSize,
	}

	s.IO.OnConnect("/", s.onConnect)
	s.IO.OnError("/", func(c socketio.Conn, err error) {
		s.Logger.Warn("socket error", "error", err)
	})
	s.IO.OnDisconnect("/", func(c socketio.Conn, reason string) {
		s.release(c, reason)
	})
	return s
}

func (s *SocketServer) onConnect(c socketio.Conn) error {
	u := c.URL()
	token := u.Query().Get("token")
	if token == "" {
		token = middleware.TokenFromRequest(&http.Request{Header: c.RemoteHeader()})
	}
	userID, err := s.Verifier.Verify(token)
	if err != nil {
		s.Logger.Debug("socket rejected", "socket", c.ID(), "error", err)
		return err
	}

	outbox := presence.NewOutbox("sio-"+c.ID(), s.OutboxSize, func(event string, payload any) error {
		c.Emit(event, payload)
		return nil
	}, s.Logger)
	c.SetContext(&connState{userID: userID, outbox: outbox})
	s.Directory.Register(userID, outbox)
	s.Logger.Info("socket connected", "socket", c.ID(), "user", userID)
	return nil
}

func (s *SocketServer) release(c socketio.Conn, reason string) {
	st, ok := c.Context().(*connState)
	if !ok || st == nil {
		return
	}
	st.outbox.Close()
	s.Directory.Unregister(st.userID, st.outbox)
	s.Logger.Info("socket disconnected", "socket", c.ID(), "user", st.userID, "reason", reason)
}

// BroadcastOnline sends the online user list to every socket.io client.
func (s *SocketServer) BroadcastOnline(online []string) {
	s.IO.BroadcastToNamespace("/", models.EventOnlineUsers, online)
}
