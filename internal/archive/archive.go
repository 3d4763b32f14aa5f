// Package archive mirrors completed renders into object storage. Provider
// media URLs expire; a configured archive keeps a durable copy. Everything
// here is best-effort: callers log failures and move on.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"runreel/internal/config"
	"runreel/internal/logging"
)

// Archiver copies remote media into a MinIO bucket.
type Archiver struct {
	client     *minio.Client
	bucket     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds an archiver from configuration. Returns nil with no error when
// archiving is disabled so callers can treat absence as "skip".
func New(cfg *config.Config, logger *slog.Logger) (*Archiver, error) {
	if cfg == nil || !cfg.Archive.Enabled {
		return nil, nil
	}
	if cfg.Archive.Endpoint == "" || cfg.Archive.Bucket == "" {
		return nil, fmt.Errorf("archive enabled but endpoint or bucket missing")
	}
	client, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
		Secure: cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return &Archiver{
		client:     client,
		bucket:     cfg.Archive.Bucket,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "archive"),
	}, nil
}

// Archive downloads mediaURL and stores it under renders/{recordID}.mp4,
// returning the object path within the bucket.
func (a *Archiver) Archive(ctx context.Context, recordID, mediaURL string) (string, error) {
	if recordID == "" || mediaURL == "" {
		return "", fmt.Errorf("record id and media url are required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch media: http %d", resp.StatusCode)
	}

	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	object := fmt.Sprintf("renders/%s.mp4", recordID)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	info, err := a.client.PutObject(ctx, a.bucket, object, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store render copy: %w", err)
	}
	a.logger.Info(
		"render mirrored to archive",
		logging.String("object", object),
		logging.Int64("size_bytes", info.Size),
	)
	return object, nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create archive bucket: %w", err)
	}
	return nil
}
