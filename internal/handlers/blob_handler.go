package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/storage"
	"aiproctor/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BlobHandler serves stored résumés and recordings at the URLs the store
// handed out on upload.
type BlobHandler struct {
	store  storage.BlobStore
	logger *zap.Logger
}

func NewBlobHandler(store storage.BlobStore, logger *zap.Logger) *BlobHandler {
	return &BlobHandler{store: store, logger: logger}
}

func (h *BlobHandler) GetBlobHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	blob, err := h.store.Open(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "not_found",
			Message: "File not found",
		})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer blob.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	if blob.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob.Body); err != nil {
		h.logger.Warn("Blob stream interrupted", zap.String("name", name), zap.Error(err))
	}
}
