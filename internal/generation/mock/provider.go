// Package mock is a deterministic generation provider for tests and local runs.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/DukeRupert/podforge/internal/generation"
)

const (
	defaultWidth  = 1024
	defaultHeight = 1024
)

// Provider is a mock generation provider.
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable failures for testing
	SpeechError error
	ImageError  error

	// Call tracking for testing
	SpeechCalls int
	ImageCalls  int
}

// New creates a new mock provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// GenerateSpeech returns a short MP3-framed payload naming the voice.
func (p *Provider) GenerateSpeech(ctx context.Context, params generation.SpeechParams) (*generation.Artifact, error) {
	p.mu.Lock()
	p.SpeechCalls++
	failure := p.SpeechError
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, generation.WrapError("speech", err)
	}
	if failure != nil {
		return nil, generation.WrapError("speech", failure)
	}

	var buf bytes.Buffer
	buf.WriteString("ID3")
	buf.Write([]byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	fmt.Fprintf(&buf, "voice=%s;text=%s", params.Voice, params.Text)

	p.logger.Debug("mock speech generated", "voice", params.Voice, "bytes", buf.Len())
	return &generation.Artifact{
		Data:        buf.Bytes(),
		ContentType: "audio/mpeg",
		Usage:       generation.UsageInfo{Model: "mock-tts-1", Duration: 50 * time.Millisecond},
	}, nil
}

// GenerateImage returns a solid PNG whose colour is derived from the prompt.
func (p *Provider) GenerateImage(ctx context.Context, params generation.ImageParams) (*generation.Artifact, error) {
	p.mu.Lock()
	p.ImageCalls++
	failure := p.ImageError
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, generation.WrapError("image", err)
	}
	if failure != nil {
		return nil, generation.WrapError("image", failure)
	}

	w, h := params.Width, params.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}

	var sum byte
	for i := 0; i < len(params.Prompt); i++ {
		sum += params.Prompt[i]
	}
	img := imaging.New(w, h, color.NRGBA{R: sum, G: 128, B: 255 - sum, A: 255})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, generation.WrapError("image", err)
	}

	p.logger.Debug("mock image generated", "width", w, "height", h, "bytes", buf.Len())
	return &generation.Artifact{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Usage:       generation.UsageInfo{Model: "mock-image-1", Duration: 80 * time.Millisecond},
	}, nil
}

// Calls returns the number of speech and image calls so far.
func (p *Provider) Calls() (speech, image int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SpeechCalls, p.ImageCalls
}

// FailSpeech sets the error returned by subsequent speech calls.
func (p *Provider) FailSpeech(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeechError = err
}

// FailImage sets the error returned by subsequent image calls.
func (p *Provider) FailImage(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ImageError = err
}
