package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"phish-merge/internal/config"
	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.Publisher = (*S3Publisher)(nil)

// S3Publisher uploads files to S3-compatible object storage.
type S3Publisher struct {
	client *s3.Client
}

// NewS3Publisher creates a publisher from static S3 credentials.
func NewS3Publisher(cfg *config.S3Config) (*S3Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil S3 config")
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		BaseEndpoint: aws.String("https://" + cfg.Endpoint),
		UsePathStyle: cfg.URLStyle != "vhost",
	})

	return &S3Publisher{client: client}, nil
}

// Scheme implements domain.Publisher.
func (p *S3Publisher) Scheme() string { return SchemeS3 }

// Publish uploads body to an s3:// destination.
func (p *S3Publisher) Publish(ctx context.Context, dest string, body io.Reader, size int64) error {
	bucket, key, err := ParseS3Path(dest)
	if err != nil {
		return err
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeCSV),
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", dest, err)
	}
	return nil
}
