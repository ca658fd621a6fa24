package wiki

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewBlobStoreRequiresDatabase(t *testing.T) {
	t.Parallel()

	if _, err := NewBlobStore(nil, nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestBlobUploadDownloadRoundTrip(t *testing.T) {
	t.Parallel()

	blobs := setupBlobStore(t)
	ctx := context.Background()

	payload := []byte("attachment payload")
	if err := blobs.Upload(ctx, "file-1", "notes.txt", "text/plain", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	data, err := blobs.Download(ctx, "file-1")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("expected payload %q, got %q", payload, data)
	}
}

func TestBlobDownloadReturnsNilForUnknownKey(t *testing.T) {
	t.Parallel()

	blobs := setupBlobStore(t)

	data, err := blobs.Download(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil payload for unknown key, got %d bytes", len(data))
	}
}

func TestBlobFindMetaOmitsPayload(t *testing.T) {
	t.Parallel()

	blobs := setupBlobStore(t)
	ctx := context.Background()

	if err := blobs.Upload(ctx, "file-2", "photo.png", "image/png", bytes.NewReader([]byte{1, 2, 3})); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	meta, err := blobs.FindMeta(ctx, "file-2")
	if err != nil {
		t.Fatalf("FindMeta returned error: %v", err)
	}
	if meta == nil {
		t.Fatalf("expected metadata for stored blob")
	}
	if meta.FileName != "photo.png" || meta.MimeType != "image/png" {
		t.Fatalf("unexpected metadata: %#v", meta)
	}

	missing, err := blobs.FindMeta(ctx, "unknown")
	if err != nil {
		t.Fatalf("FindMeta returned error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil metadata for unknown key, got %#v", missing)
	}
}

func TestBlobDeleteIsNotIdempotent(t *testing.T) {
	t.Parallel()

	blobs := setupBlobStore(t)
	ctx := context.Background()

	if err := blobs.Upload(ctx, "file-3", "a.bin", "application/octet-stream", bytes.NewReader([]byte{42})); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	deleted, err := blobs.Delete(ctx, "file-3")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected first delete to succeed")
	}

	deleted, err = blobs.Delete(ctx, "file-3")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted {
		t.Fatalf("expected repeated delete of the same key to report failure")
	}
}

func setupBlobStore(t *testing.T) *GormBlobStore {
	t.Helper()

	conn := setupDatabase(t, "blobs.db")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	blobs, err := NewBlobStore(conn, logger)
	if err != nil {
		t.Fatalf("NewBlobStore returned error: %v", err)
	}

	return blobs
}
