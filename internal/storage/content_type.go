package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Content types of generated artifacts.
const (
	ContentTypeMP3  = "audio/mpeg"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// allowedUploads are the content types accepted from users.
var allowedUploads = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/mp4":  ".m4a",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// DetectContentType picks a MIME type from, in order, the provided value,
// the file extension and the first 512 bytes of data.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	if data != nil {
		buf := make([]byte, 512)
		n, err := io.ReadFull(data, buf)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buf[:n])
		}
	}
	return "application/octet-stream"
}

// IsAllowedUpload reports whether contentType may be uploaded.
func IsAllowedUpload(contentType string) bool {
	_, ok := allowedUploads[baseType(contentType)]
	return ok
}

// ExtensionFor returns the file extension used for contentType.
func ExtensionFor(contentType string) string {
	if ext, ok := allowedUploads[baseType(contentType)]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}
