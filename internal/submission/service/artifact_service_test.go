package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"agentbench/internal/common/storage"
	appErr "agentbench/pkg/errors"
)

type storedObject struct {
	data        []byte
	contentType string
}

type stubStorage struct {
	objects map[string]storedObject
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: map[string]storedObject{}}
}

func (s *stubStorage) PutObject(_ context.Context, _, objectKey string, reader io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[objectKey] = storedObject{data: data, contentType: contentType}
	return nil
}

func (s *stubStorage) GetObject(_ context.Context, _, objectKey string) (storage.ObjectReader, error) {
	obj, ok := s.objects[objectKey]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *stubStorage) StatObject(_ context.Context, _, objectKey string) (storage.ObjectStat, error) {
	obj, ok := s.objects[objectKey]
	if !ok {
		return storage.ObjectStat{}, io.ErrUnexpectedEOF
	}
	return storage.ObjectStat{SizeBytes: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (s *stubStorage) PresignDownload(_ context.Context, _, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + objectKey, nil
}

func (s *stubStorage) RemoveObject(_ context.Context, _, objectKey string) error {
	delete(s.objects, objectKey)
	return nil
}

func newTestArtifactService(t *testing.T, store *stubStorage) *ArtifactService {
	t.Helper()
	svc, err := NewArtifactService(ArtifactServiceConfig{
		Storage:  store,
		Bucket:   "agent-artifacts",
		MaxBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("NewArtifactService: %v", err)
	}
	return svc
}

func gzipPayload(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestArtifactUploadAcceptsGzip(t *testing.T) {
	t.Parallel()

	store := newStubStorage()
	svc := newTestArtifactService(t, store)
	payload := gzipPayload(t, "agent tarball contents")

	key, err := svc.Upload(context.Background(), 7, "my agent v2.tar.gz", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(key, "artifacts/7/") {
		t.Fatalf("unexpected object key: %q", key)
	}
	if strings.Contains(key, " ") {
		t.Fatalf("object key must be sanitized: %q", key)
	}
	obj, ok := store.objects[key]
	if !ok {
		t.Fatal("object not stored")
	}
	if !bytes.Equal(obj.data, payload) {
		t.Fatal("stored bytes differ from upload")
	}
	if obj.contentType != "application/gzip" {
		t.Fatalf("unexpected content type: %q", obj.contentType)
	}

	url, err := svc.DownloadURL(context.Background(), key)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !strings.Contains(url, key) {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestArtifactUploadRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store := newStubStorage()
	svc := newTestArtifactService(t, store)
	ctx := context.Background()
	valid := gzipPayload(t, "ok")

	if _, err := svc.Upload(ctx, 7, "agent.zip", bytes.NewReader(valid)); !appErr.Is(err, appErr.ArtifactInvalid) {
		t.Fatalf("expected ArtifactInvalid for wrong extension, got %v", err)
	}
	if _, err := svc.Upload(ctx, 7, "agent.tar.gz", strings.NewReader("plain text, not gzip")); !appErr.Is(err, appErr.ArtifactInvalid) {
		t.Fatalf("expected ArtifactInvalid for non-gzip bytes, got %v", err)
	}
	if _, err := svc.Upload(ctx, 7, "agent.tar.gz", bytes.NewReader(nil)); !appErr.Is(err, appErr.ArtifactInvalid) {
		t.Fatalf("expected ArtifactInvalid for empty upload, got %v", err)
	}

	// Truncated member: header parses but decompression fails.
	truncated := valid[:len(valid)-4]
	if _, err := svc.Upload(ctx, 7, "agent.tgz", bytes.NewReader(truncated)); !appErr.Is(err, appErr.ArtifactInvalid) {
		t.Fatalf("expected ArtifactInvalid for truncated gzip, got %v", err)
	}

	if len(store.objects) != 0 {
		t.Fatalf("rejected uploads must not reach storage, found %d objects", len(store.objects))
	}
}

func TestArtifactUploadEnforcesSizeLimit(t *testing.T) {
	t.Parallel()

	store := newStubStorage()
	svc, err := NewArtifactService(ArtifactServiceConfig{
		Storage:  store,
		Bucket:   "agent-artifacts",
		MaxBytes: 64,
	})
	if err != nil {
		t.Fatalf("NewArtifactService: %v", err)
	}

	payload := gzipPayload(t, strings.Repeat("x", 4096))
	if _, err := svc.Upload(context.Background(), 7, "big.tar.gz", bytes.NewReader(payload)); !appErr.Is(err, appErr.PayloadTooLarge) {
		t.Fatalf("expected PayloadTooLarge, got %v", err)
	}
}
