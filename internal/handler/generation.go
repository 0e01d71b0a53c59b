// Package handler contains HTTP handlers for the podforge API.
//
// This file implements the generation and podcast handlers.
//
// Routes handled:
//   - POST /api/generate/audio     -> GenerateAudio
//   - POST /api/generate/thumbnail -> GenerateThumbnail
//   - POST /api/podcasts           -> CreatePodcast
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/podforge/internal/auth"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/service"
)

// Generator produces gated artifacts.
type Generator interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*service.Artifact, error)
}

// PodcastCreator assembles podcast episodes.
type PodcastCreator interface {
	CreatePodcast(ctx context.Context, req service.CreatePodcastRequest) (*service.Podcast, error)
}

// GenerationHandler handles generation and podcast creation requests.
type GenerationHandler struct {
	generator Generator
	podcasts  PodcastCreator
	logger    *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generator Generator, podcasts PodcastCreator, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generator: generator,
		podcasts:  podcasts,
		logger:    logger,
	}
}

// RegisterRoutes registers generation routes on the provided mux.
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/generate/audio", requireUser(http.HandlerFunc(h.GenerateAudio)))
	mux.Handle("POST /api/generate/thumbnail", requireUser(http.HandlerFunc(h.GenerateThumbnail)))
	mux.Handle("POST /api/podcasts", requireUser(http.HandlerFunc(h.CreatePodcast)))
}

// generateRequest is the JSON body of a generation call.
type generateRequest struct {
	Prompt string `json:"prompt"`
	Voice  string `json:"voice,omitempty"`
}

// GenerateAudio synthesizes speech from the prompt.
func (h *GenerationHandler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, domain.ActionAudio)
}

// GenerateThumbnail renders a thumbnail image. Thumbnails need a paid plan.
func (h *GenerationHandler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, domain.ActionThumbnail)
}

func (h *GenerationHandler) generate(w http.ResponseWriter, r *http.Request, kind domain.ActionKind) {
	var body generateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if kind != domain.ActionAudio && body.Voice != "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("GenerationHandler.generate", "Voice applies to audio only."))
		return
	}

	artifact, err := h.generator.Generate(r.Context(), service.GenerateRequest{
		UserID: auth.UserIDFromRequest(r),
		Kind:   kind,
		Voice:  body.Voice,
		Prompt: body.Prompt,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, artifact)
}

// createPodcastRequest is the JSON body of a podcast creation call.
type createPodcastRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	AudioKey     string `json:"audioKey"`
	ThumbnailKey string `json:"thumbnailKey,omitempty"`
}

// CreatePodcast stores an episode manifest for the caller's artifacts.
func (h *GenerationHandler) CreatePodcast(w http.ResponseWriter, r *http.Request) {
	var body createPodcastRequest
	if err := decodeJSON(w, r, &body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	podcast, err := h.podcasts.CreatePodcast(r.Context(), service.CreatePodcastRequest{
		UserID:       auth.UserIDFromRequest(r),
		Title:        body.Title,
		Description:  body.Description,
		AudioKey:     body.AudioKey,
		ThumbnailKey: body.ThumbnailKey,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, podcast)
}
