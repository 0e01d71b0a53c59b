package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/generation"
	"github.com/DukeRupert/podforge/internal/metrics"
	"github.com/DukeRupert/podforge/internal/storage"
)

// Gate decides whether a privileged action may run.
type Gate interface {
	Authorize(ctx context.Context, req domain.ActionRequest) (domain.Decision, error)
}

// UsageRecorder counts successful metered actions.
type UsageRecorder interface {
	Record(ctx context.Context, userID string, kind domain.ActionKind) (int, error)
}

// GenerateRequest asks for one generated artifact.
type GenerateRequest struct {
	UserID string
	Kind   domain.ActionKind // audio or thumbnail
	Voice  string            // audio only; empty selects the default voice
	Prompt string
}

// Artifact is a stored generation result.
type Artifact struct {
	Kind        domain.ActionKind `json:"kind"`
	Key         string            `json:"key"`
	URL         string            `json:"url"`
	ContentType string            `json:"contentType"`
	Size        int               `json:"size"`
	Voice       domain.Voice      `json:"voice,omitempty"`
	PreviewKey  string            `json:"previewKey,omitempty"`
	PreviewURL  string            `json:"previewUrl,omitempty"`
	Plan        domain.Plan       `json:"plan"`
	Used        int               `json:"used"`
	Ceiling     int               `json:"ceiling"`
}

// GenerationService runs gated audio and thumbnail generation.
type GenerationService struct {
	gate     Gate
	provider generation.Provider
	storage  storage.Storage
	usage    UsageRecorder
	previews *PreviewRenderer
	logger   *slog.Logger
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(gate Gate, provider generation.Provider, store storage.Storage, usage UsageRecorder, previews *PreviewRenderer, logger *slog.Logger) *GenerationService {
	return &GenerationService{
		gate:     gate,
		provider: provider,
		storage:  store,
		usage:    usage,
		previews: previews,
		logger:   logger,
	}
}

// Generate authorizes the request, calls the provider, stores the result and
// then counts it against the quota. A failed generation is not counted.
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	const op = "GenerationService.Generate"

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.Invalid(op, "Prompt is required.")
	}
	if len(prompt) > generation.MaxPromptLength {
		return nil, domain.Invalid(op, "Prompt is too long.")
	}

	var voice domain.Voice
	switch req.Kind {
	case domain.ActionAudio:
		v, ok := domain.ParseVoice(req.Voice)
		if !ok {
			return nil, domain.Invalid(op, "Unknown voice.")
		}
		voice = v
	case domain.ActionThumbnail:
	default:
		return nil, domain.Invalid(op, "Only audio and thumbnail can be generated.")
	}

	decision, err := s.gate.Authorize(ctx, domain.ActionRequest{UserID: req.UserID, Kind: req.Kind, Voice: voice})
	if err != nil {
		return nil, err
	}
	if err := decision.Err(op); err != nil {
		return nil, err
	}

	out, err := s.call(ctx, req.Kind, req.UserID, prompt, voice)
	if err != nil {
		s.logger.Warn("generation failed", "kind", req.Kind, "user_id", req.UserID, "error", err)
		switch {
		case errors.Is(err, generation.ErrContentPolicy):
			return nil, domain.Wrap(err, domain.EINVALID, op, "The prompt was refused by the content policy.")
		case generation.IsRetryable(err):
			return nil, domain.Unavailable(err, op, "The generation service is busy. Please try again.")
		}
		return nil, domain.Internal(err, op, "generation failed")
	}

	art := &Artifact{
		Kind:        req.Kind,
		ContentType: out.ContentType,
		Size:        len(out.Data),
		Voice:       voice,
		Plan:        decision.Plan,
		Ceiling:     decision.Ceiling,
		Used:        decision.Used,
	}
	if err := s.store(ctx, req.UserID, art, out.Data); err != nil {
		return nil, domain.Internal(err, op, "failed to store artifact")
	}

	used, err := s.usage.Record(ctx, req.UserID, req.Kind)
	if err != nil {
		// The artifact exists; a missed increment only loosens the soft limit.
		s.logger.Error("failed to record usage", "kind", req.Kind, "user_id", req.UserID, "error", err)
	} else {
		art.Used = used
	}

	s.logger.Info("artifact generated",
		"kind", req.Kind,
		"user_id", req.UserID,
		"key", art.Key,
		"size", art.Size,
		"model", out.Usage.Model,
		"used", art.Used,
		"ceiling", art.Ceiling,
	)
	return art, nil
}

func (s *GenerationService) call(ctx context.Context, kind domain.ActionKind, userID, prompt string, voice domain.Voice) (*generation.Artifact, error) {
	start := time.Now()
	var out *generation.Artifact
	var err error

	switch kind {
	case domain.ActionAudio:
		out, err = s.provider.GenerateSpeech(ctx, generation.SpeechParams{Text: prompt, Voice: voice, UserID: userID})
	default:
		out, err = s.provider.GenerateImage(ctx, generation.ImageParams{Prompt: prompt, UserID: userID})
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.GenerationCalls.WithLabelValues(string(kind), status).Inc()
	s.logger.Debug("generation call", "kind", kind, "status", status, "duration", time.Since(start))
	return out, err
}

// store writes the artifact and, for images, its preview.
func (s *GenerationService) store(ctx context.Context, userID string, art *Artifact, data []byte) error {
	art.Key = storage.ArtifactKey(userID, string(art.Kind), storage.ExtensionFor(art.ContentType))
	if err := s.storage.Put(ctx, art.Key, bytes.NewReader(data), storage.PutOptions{ContentType: art.ContentType}); err != nil {
		return err
	}
	url, err := s.storage.URL(ctx, art.Key, 0)
	if err != nil {
		return err
	}
	art.URL = url

	if art.Kind != domain.ActionThumbnail || s.previews == nil {
		return nil
	}
	preview, _, _, err := s.previews.Render(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to render preview", "key", art.Key, "error", err)
		return nil
	}
	art.PreviewKey = storage.PreviewKey(art.Key)
	if err := s.storage.Put(ctx, art.PreviewKey, bytes.NewReader(preview), storage.PutOptions{ContentType: storage.ContentTypeJPEG}); err != nil {
		return err
	}
	art.PreviewURL, err = s.storage.URL(ctx, art.PreviewKey, 0)
	return err
}
