package routes

import (
	"log/slog"

	"chat_server/controllers"
	"chat_server/services"

	"github.com/gorilla/mux"
)

// RegisterUploadRoutes sets up routes for S3 uploads under /uploads
func RegisterUploadRoutes(r *mux.Router, images services.ImageStore, logger *slog.Logger) {
	controller := controllers.NewUploadController(images, logger)
	r.HandleFunc("/uploads/presign", controller.HandlePresign).Methods("POST")
}
