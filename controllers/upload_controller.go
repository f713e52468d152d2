package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat_server/services"
)

// UploadController hands out presigned S3 URLs for direct image uploads.
type UploadController struct {
	Images services.ImageStore
	Logger *slog.Logger
}

// NewUploadController initializes the upload controller
func NewUploadController(images services.ImageStore, logger *slog.Logger) *UploadController {
	return &UploadController{Images: images, Logger: logger}
}

// HandlePresign - POST /presign {fileName, fileType}
func (c *UploadController) HandlePresign(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if payload.FileName == "" || payload.FileType == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	url, key, err := c.Images.UploadURL(r.Context(), payload.FileName, payload.FileType)
	if err != nil {
		writeError(w, c.Logger, r, err)
		return
	}
	c.Logger.Debug("presigned upload url", "key", key)
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "fileName": key})
}
