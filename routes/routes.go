package routes

import (
	"log/slog"
	"net/http"

	"chat_server/controllers"
	"chat_server/metrics"
	"chat_server/middleware"
	"chat_server/presence"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	ChatRequests *services.ChatRequestService
	Messages     *services.MessageService
	Users        *services.UserService
	Images       services.ImageStore // nil disables /api/uploads
	Directory    *presence.Directory
	Verifier     middleware.TokenVerifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// RegisterRoutes sets up the unauthenticated routes
func RegisterRoutes(r *mux.Router, m *metrics.Metrics) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")
}

// NewRouter builds the full router. Everything under /api requires a
// session token.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(d.Logger), d.Metrics.Instrument)
	RegisterRoutes(r, d.Metrics)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireUser(d.Verifier, d.Logger))

	RegisterChatRequestRoutes(api, d.ChatRequests, d.Logger)
	RegisterMessageRoutes(api, d.Messages, d.Logger)
	RegisterUserRoutes(api, d.Users, d.Directory, d.Logger)
	if d.Images != nil {
		RegisterUploadRoutes(api, d.Images, d.Logger)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not found"}`))
	})
	return r
}
