package publish

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.Publisher = (*GCSPublisher)(nil)

// GCSPublisher uploads files to Google Cloud Storage.
type GCSPublisher struct {
	client *storage.Client
}

// NewGCSPublisher creates a GCS publisher. An empty keyFile uses
// application default credentials.
func NewGCSPublisher(ctx context.Context, keyFile string) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSPublisher{client: client}, nil
}

// Scheme implements domain.Publisher.
func (p *GCSPublisher) Scheme() string { return SchemeGCS }

// Publish uploads body to a gs:// destination.
func (p *GCSPublisher) Publish(ctx context.Context, dest string, body io.Reader, _ int64) error {
	bucket, key, err := ParseGCSPath(dest)
	if err != nil {
		return err
	}

	w := p.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeCSV
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %q: %w", dest, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %q: %w", dest, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}
