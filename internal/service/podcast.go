package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/storage"
)

const (
	// MaxTitleLength bounds podcast titles.
	MaxTitleLength = 200

	contentTypeJSON = "application/json"
)

// CreatePodcastRequest assembles stored artifacts into a podcast episode.
type CreatePodcastRequest struct {
	UserID       string
	Title        string
	Description  string
	AudioKey     string
	ThumbnailKey string // optional
}

// Podcast is the stored episode manifest.
type Podcast struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	AudioKey     string    `json:"audioKey"`
	ThumbnailKey string    `json:"thumbnailKey,omitempty"`
	ManifestKey  string    `json:"manifestKey"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
	Used         int       `json:"used"`
	Ceiling      int       `json:"ceiling"`
}

// PodcastService creates podcast episodes from a user's artifacts.
type PodcastService struct {
	gate    Gate
	storage storage.Storage
	usage   UsageRecorder
	now     func() time.Time
	logger  *slog.Logger
}

// NewPodcastService creates a PodcastService.
func NewPodcastService(gate Gate, store storage.Storage, usage UsageRecorder, logger *slog.Logger) *PodcastService {
	return &PodcastService{
		gate:    gate,
		storage: store,
		usage:   usage,
		now:     time.Now,
		logger:  logger,
	}
}

// CreatePodcast writes an episode manifest referencing existing artifacts.
// Creation is metered; usage is recorded once the manifest is stored.
func (s *PodcastService) CreatePodcast(ctx context.Context, req CreatePodcastRequest) (*Podcast, error) {
	const op = "PodcastService.CreatePodcast"

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.Invalid(op, "Title is required.")
	}
	if len(title) > MaxTitleLength {
		return nil, domain.Invalid(op, fmt.Sprintf("Title must be at most %d characters.", MaxTitleLength))
	}
	if req.AudioKey == "" {
		return nil, domain.Invalid(op, "Audio is required.")
	}

	decision, err := s.gate.Authorize(ctx, domain.ActionRequest{UserID: req.UserID, Kind: domain.ActionPodcast})
	if err != nil {
		return nil, err
	}
	if err := decision.Err(op); err != nil {
		return nil, err
	}

	if err := s.checkOwned(ctx, op, req.UserID, req.AudioKey, "Audio"); err != nil {
		return nil, err
	}
	if req.ThumbnailKey != "" {
		if err := s.checkOwned(ctx, op, req.UserID, req.ThumbnailKey, "Thumbnail"); err != nil {
			return nil, err
		}
	}

	p := &Podcast{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		AudioKey:     req.AudioKey,
		ThumbnailKey: req.ThumbnailKey,
		CreatedAt:    s.now().UTC(),
		Used:         decision.Used,
		Ceiling:      decision.Ceiling,
	}
	p.ManifestKey = fmt.Sprintf("podcasts/%s/%s.json", storage.OwnerSegment(req.UserID), p.ID)

	body, err := json.Marshal(p)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode podcast")
	}
	if err := s.storage.Put(ctx, p.ManifestKey, bytes.NewReader(body), storage.PutOptions{ContentType: contentTypeJSON}); err != nil {
		return nil, domain.Internal(err, op, "failed to store podcast")
	}
	if p.URL, err = s.storage.URL(ctx, p.ManifestKey, 0); err != nil {
		return nil, domain.Internal(err, op, "failed to link podcast")
	}

	used, err := s.usage.Record(ctx, req.UserID, domain.ActionPodcast)
	if err != nil {
		s.logger.Error("failed to record usage", "kind", domain.ActionPodcast, "user_id", req.UserID, "error", err)
	} else {
		p.Used = used
	}

	s.logger.Info("podcast created", "user_id", req.UserID, "podcast_id", p.ID, "used", p.Used, "ceiling", p.Ceiling)
	return p, nil
}

// checkOwned verifies key belongs to the user and exists.
func (s *PodcastService) checkOwned(ctx context.Context, op, userID, key, label string) error {
	if !storage.OwnedBy(key, userID) {
		return domain.Invalid(op, label+" does not belong to you.")
	}
	ok, err := s.storage.Exists(ctx, key)
	if err != nil {
		return domain.Invalid(op, label+" key is invalid.")
	}
	if !ok {
		return domain.NotFound(op, strings.ToLower(label), key)
	}
	return nil
}
