package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"phish-merge/internal/config"
	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.Publisher = (*AzurePublisher)(nil)

// AzurePublisher uploads files to Azure Blob Storage using a shared key.
type AzurePublisher struct {
	client *azblob.Client
}

// NewAzurePublisher creates a publisher for the configured storage account.
func NewAzurePublisher(cfg *config.AzureConfig) (*AzurePublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil Azure config")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}

	return &AzurePublisher{client: client}, nil
}

// Scheme implements domain.Publisher.
func (p *AzurePublisher) Scheme() string { return SchemeAzure }

// Publish uploads body to an Azure destination.
func (p *AzurePublisher) Publish(ctx context.Context, dest string, body io.Reader, _ int64) error {
	container, key, err := ParseAzurePath(dest)
	if err != nil {
		return err
	}

	contentType := contentTypeCSV
	_, err = p.client.UploadStream(ctx, container, key, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload %q: %w", dest, err)
	}
	return nil
}
