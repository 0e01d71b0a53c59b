// Package generation defines the collaborator that turns prompts into audio
// and images.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Provider generates media. Implementations must honour ctx cancellation.
type Provider interface {
	// GenerateSpeech renders text as MP3 audio in the given voice.
	GenerateSpeech(ctx context.Context, params SpeechParams) (*Artifact, error)

	// GenerateImage renders a thumbnail image for the prompt.
	GenerateImage(ctx context.Context, params ImageParams) (*Artifact, error)
}

// SpeechParams contains parameters for speech generation.
type SpeechParams struct {
	Text   string
	Voice  domain.Voice
	UserID string // for provider-side usage tracking
}

// ImageParams contains parameters for image generation.
type ImageParams struct {
	Prompt string
	Width  int
	Height int
	UserID string
}

// Artifact is the raw output of a generation call.
type Artifact struct {
	Data        []byte
	ContentType string
	Usage       UsageInfo
}

// UsageInfo tracks provider usage for monitoring.
type UsageInfo struct {
	Model    string
	Duration time.Duration
}

// Provider names accepted by configuration.
const (
	ProviderMock = "mock"
)

// MaxPromptLength bounds prompt and speech text.
const MaxPromptLength = 4096

var (
	// ErrRateLimit indicates the provider throttled the request.
	ErrRateLimit = errors.New("generation provider rate limit exceeded")

	// ErrContentPolicy indicates the prompt was refused.
	ErrContentPolicy = errors.New("prompt violates content policy")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("generation request timed out")

	// ErrUnavailable indicates the provider is temporarily unavailable.
	ErrUnavailable = errors.New("generation service temporarily unavailable")

	// ErrUnauthorized indicates invalid provider credentials.
	ErrUnauthorized = errors.New("generation provider authentication failed")
)

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with the generation operation name.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("generation %s: %w", operation, err)
}
