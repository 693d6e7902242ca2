package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"agentbench/internal/common/storage"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

const (
	defaultMaxArtifactBytes = 64 << 20
	defaultPresignTTL       = 15 * time.Minute
	artifactContentType     = "application/gzip"
)

var artifactNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ArtifactService stores uploaded agent archives. Only gzip tarballs are
// accepted; the stream is decompressed far enough to prove it is a real
// gzip member before anything touches object storage.
type ArtifactService struct {
	storage    storage.ObjectStorage
	bucket     string
	maxBytes   int64
	presignTTL time.Duration
}

// ArtifactServiceConfig holds the artifact service dependencies.
type ArtifactServiceConfig struct {
	Storage    storage.ObjectStorage
	Bucket     string
	MaxBytes   int64
	PresignTTL time.Duration
}

// NewArtifactService creates the artifact service.
func NewArtifactService(cfg ArtifactServiceConfig) (*ArtifactService, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxArtifactBytes
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}
	return &ArtifactService{
		storage:    cfg.Storage,
		bucket:     cfg.Bucket,
		maxBytes:   cfg.MaxBytes,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// Upload validates and stores an agent archive, returning the object key to
// use as the submission's source URL.
func (s *ArtifactService) Upload(ctx context.Context, userID int64, filename string, reader io.Reader) (string, error) {
	name := path.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == "/" {
		return "", appErr.ValidationError("filename", "must not be empty")
	}
	if !strings.HasSuffix(name, ".tar.gz") && !strings.HasSuffix(name, ".tgz") {
		return "", appErr.Newf(appErr.ArtifactInvalid, "expected a .tar.gz or .tgz archive, got %q", name)
	}

	data, err := io.ReadAll(io.LimitReader(reader, s.maxBytes+1))
	if err != nil {
		return "", appErr.Wrap(err, appErr.ArtifactUploadFailed)
	}
	if int64(len(data)) > s.maxBytes {
		return "", appErr.Newf(appErr.PayloadTooLarge, "artifact exceeds %d bytes", s.maxBytes)
	}
	if len(data) == 0 {
		return "", appErr.New(appErr.ArtifactInvalid).WithMessage("artifact is empty")
	}
	if err := validateGzip(data); err != nil {
		return "", appErr.Wrap(err, appErr.ArtifactInvalid)
	}

	key := fmt.Sprintf("artifacts/%d/%d-%s", userID, time.Now().UnixNano(), sanitizeArtifactName(name))
	if err := s.storage.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), artifactContentType); err != nil {
		return "", appErr.Wrap(err, appErr.ArtifactUploadFailed)
	}

	logger.Info(ctx, "artifact uploaded",
		zap.Int64("user_id", userID),
		zap.String("object_key", key),
		zap.Int("size_bytes", len(data)))
	return key, nil
}

// DownloadURL returns a presigned GET URL for a stored artifact.
func (s *ArtifactService) DownloadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", appErr.ValidationError("object_key", "must not be empty")
	}
	if _, err := s.storage.StatObject(ctx, s.bucket, objectKey); err != nil {
		return "", appErr.Wrap(err, appErr.ArtifactInvalid)
	}
	url, err := s.storage.PresignDownload(ctx, s.bucket, objectKey, s.presignTTL)
	if err != nil {
		return "", appErr.Wrap(err, appErr.ArtifactUploadFailed)
	}
	return url, nil
}

// validateGzip decompresses the archive to prove it is well formed, without
// keeping the output.
func validateGzip(data []byte) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("not a gzip archive: %w", err)
	}
	defer zr.Close()
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return fmt.Errorf("corrupt gzip archive: %w", err)
	}
	return nil
}

func sanitizeArtifactName(name string) string {
	return artifactNameSanitizer.ReplaceAllString(name, "_")
}
