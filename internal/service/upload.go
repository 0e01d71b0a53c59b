package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/storage"
)

// DefaultMaxUploadSize is 25 MB.
const DefaultMaxUploadSize int64 = 25 << 20

// UploadRequest is one user file.
type UploadRequest struct {
	UserID      string
	Filename    string
	ContentType string // may be empty; detected from the name or content
	Body        io.Reader
}

// Upload is a stored user file.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// UploadService stores user media. Uploads are rate limited but not metered.
type UploadService struct {
	gate    Gate
	storage storage.Storage
	maxSize int64
	logger  *slog.Logger
}

// NewUploadService creates an UploadService. A non-positive maxSize uses
// DefaultMaxUploadSize.
func NewUploadService(gate Gate, store storage.Storage, maxSize int64, logger *slog.Logger) *UploadService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &UploadService{gate: gate, storage: store, maxSize: maxSize, logger: logger}
}

// MaxSize returns the largest accepted upload in bytes.
func (s *UploadService) MaxSize() int64 {
	return s.maxSize
}

// Upload authorizes and stores one file.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*Upload, error) {
	const op = "UploadService.Upload"

	if req.Body == nil {
		return nil, domain.Invalid(op, "File is required.")
	}

	decision, err := s.gate.Authorize(ctx, domain.ActionRequest{UserID: req.UserID, Kind: domain.ActionUpload})
	if err != nil {
		return nil, err
	}
	if err := decision.Err(op); err != nil {
		return nil, err
	}

	// Peek so content sniffing does not consume the body.
	body := bufio.NewReaderSize(req.Body, 512)
	var sniff io.Reader
	if head, _ := body.Peek(512); len(head) > 0 {
		sniff = bytes.NewReader(head)
	}
	contentType := storage.DetectContentType(req.ContentType, req.Filename, sniff)
	if !storage.IsAllowedUpload(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("File type %q is not supported.", contentType))
	}

	key := storage.UploadKey(req.UserID, req.Filename)
	if req.Filename == "" {
		key += storage.ExtensionFor(contentType)
	}
	err = s.storage.Put(ctx, key, body, storage.PutOptions{ContentType: contentType, MaxSize: s.maxSize})
	if err != nil {
		if storage.IsTooLarge(err) {
			return nil, domain.Invalid(op, fmt.Sprintf("File exceeds the %d MB limit.", s.maxSize>>20))
		}
		return nil, domain.Internal(err, op, "failed to store upload")
	}

	url, err := s.storage.URL(ctx, key, 0)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to link upload")
	}

	s.logger.Info("file uploaded", "user_id", req.UserID, "key", key, "content_type", contentType)
	return &Upload{Key: key, URL: url, ContentType: contentType}, nil
}
