package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/blog-platform/internal/media"
	"github.com/sakif/blog-platform/internal/model"
)

// Presigner hands out upload slots for featured images.
type Presigner interface {
	PresignUpload(ctx context.Context, actor *model.Principal, contentType string) (*media.Upload, error)
}

// MediaHandler issues presigned uploads. The browser PUTs the file straight
// to object storage and then saves the returned publicUrl as the post's
// featuredImage.
type MediaHandler struct {
	presigner Presigner
	logger    *slog.Logger
}

func NewMediaHandler(presigner Presigner, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{presigner: presigner, logger: logger}
}

// HandlePresign reserves an upload slot.
//
// HTTP: POST /api/media/presign
// REQUEST BODY: {"contentType": "image/png"}
func (h *MediaHandler) HandlePresign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentType string `json:"contentType"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	upload, err := h.presigner.PresignUpload(r.Context(), actor(r), req.ContentType)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}
