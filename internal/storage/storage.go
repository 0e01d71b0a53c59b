// Package storage persists generated artifacts (audio, thumbnails, previews)
// and user uploads.
//
// Two backends implement Storage: LocalStorage writes under a directory on
// disk for development, R2Storage writes to Cloudflare R2 through the S3 API.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put stores data at key. Without opts.Overwrite an existing key is ErrKeyExists.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to key. Backends that sign links honour expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures a Put.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // 0 means unlimited
	Overwrite   bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	BasePath string // e.g. "./data/artifacts"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // custom domain; presigned URLs are used when empty
	Region          string // defaults to "auto"
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// New builds the Storage named by provider.
func New(provider string, local LocalConfig, r2 R2Config, logger *slog.Logger) (Storage, error) {
	switch provider {
	case ProviderLocal, "":
		return NewLocalStorage(local, logger)
	case ProviderR2:
		return NewR2Storage(r2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

// ArtifactKey returns a fresh key for a generated artifact.
// Format: artifacts/{userID}/{kind}/{uuid}{ext}
func ArtifactKey(userID, kind, ext string) string {
	return fmt.Sprintf("artifacts/%s/%s/%s%s", OwnerSegment(userID), kind, uuid.New(), ext)
}

// PreviewKey returns the key of the JPEG preview rendered for artifactKey.
func PreviewKey(artifactKey string) string {
	dir, file := path.Split(artifactKey)
	base := strings.TrimSuffix(file, path.Ext(file))
	return dir + "previews/" + base + ".jpg"
}

// UploadKey returns a fresh key for a file uploaded by userID.
// Format: uploads/{userID}/{uuid}{ext}
func UploadKey(userID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("uploads/%s/%s%s", OwnerSegment(userID), uuid.New(), ext)
}

// OwnerSegment is the key segment holding userID; external ids cannot
// introduce path separators.
func OwnerSegment(userID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID)
}

// OwnedBy reports whether key is an artifact or upload of userID.
func OwnedBy(key, userID string) bool {
	owner := OwnerSegment(userID)
	return strings.HasPrefix(key, "artifacts/"+owner+"/") || strings.HasPrefix(key, "uploads/"+owner+"/")
}

// validateKey rejects empty keys and traversal attempts.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}
