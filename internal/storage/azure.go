package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureProvider uploads artifacts to an Azure Blob Storage container
type AzureProvider struct {
	containerURL azblob.ContainerURL
}

// NewAzureProvider creates a new AzureProvider instance
func NewAzureProvider(config AzureConfig) (*AzureProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, newStorageError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, newStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, newStorageError("failed to parse Azure service URL", err)
	}

	return &AzureProvider{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
	}, nil
}

func (ap *AzureProvider) Name() string { return string(ProviderAzure) }

func (ap *AzureProvider) Close() error { return nil }

// Upload sends localPath as a block blob named key
func (ap *AzureProvider) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", newStorageError("failed to open artifact", err)
	}
	defer f.Close()

	blobURL := ap.containerURL.NewBlockBlobURL(key)
	_, err = azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 4,
		Metadata: azblob.Metadata{
			"created_by": "pms-backup",
		},
	})
	if err != nil {
		return "", newStorageError("failed to upload artifact to Azure", err)
	}

	location := blobURL.URL()
	return location.String(), nil
}
