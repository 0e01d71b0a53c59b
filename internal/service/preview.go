// Package service contains the business logic layer.
//
// This file renders JPEG previews of generated thumbnails.
package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// PreviewMaxWidth and PreviewMaxHeight bound rendered previews.
	PreviewMaxWidth  = 320
	PreviewMaxHeight = 320

	previewJPEGQuality = 85
)

// PreviewRenderer downsizes images for list views.
type PreviewRenderer struct {
	maxWidth  int
	maxHeight int
}

// NewPreviewRenderer creates a renderer fitting previews inside maxWidth x maxHeight.
func NewPreviewRenderer(maxWidth, maxHeight int) *PreviewRenderer {
	if maxWidth <= 0 {
		maxWidth = PreviewMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = PreviewMaxHeight
	}
	return &PreviewRenderer{maxWidth: maxWidth, maxHeight: maxHeight}
}

// Render decodes data and returns a JPEG preview plus the source dimensions.
// The aspect ratio is preserved.
func (r *PreviewRenderer) Render(data io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()

	preview := imaging.Fit(img, r.maxWidth, r.maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(previewJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
