package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/podforge/internal/auth"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/service"
)

const (
	// uploadFormField is the multipart field holding the file.
	uploadFormField = "file"

	// multipartOverhead allows for boundaries and part headers around the file.
	multipartOverhead = 1 << 20

	// uploadMemory is the part of a multipart form kept in memory.
	uploadMemory = 8 << 20
)

// Uploader stores user files.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*service.Upload, error)
	MaxSize() int64
}

// UploadHandler handles file uploads.
type UploadHandler struct {
	uploads Uploader
	logger  *slog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploads Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// RegisterRoutes registers upload routes on the provided mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/uploads", requireUser(http.HandlerFunc(h.Upload)))
}

// Upload accepts one multipart file in the "file" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "UploadHandler.Upload"

	maxSize := h.uploads.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, fmt.Sprintf("File exceeds the %d MB limit.", maxSize>>20)))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request must be a multipart form."))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "File is required."))
		return
	}
	defer file.Close()

	upload, err := h.uploads.Upload(r.Context(), service.UploadRequest{
		UserID:      auth.UserIDFromRequest(r),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, upload)
}
