package storage

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSProvider uploads artifacts to a Google Cloud Storage bucket
type GCSProvider struct {
	client     *storage.Client
	bucketName string
}

// NewGCSProvider creates a new GCSProvider instance. Without a credentials
// file the application default credentials are used.
func NewGCSProvider(ctx context.Context, config GCSConfig) (*GCSProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, newStorageError("invalid GCS storage configuration", err)
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, newStorageError("failed to create GCS client", err)
	}

	return &GCSProvider{
		client:     client,
		bucketName: config.Bucket,
	}, nil
}

func (gp *GCSProvider) Name() string { return string(ProviderGCS) }

// Close closes the underlying client
func (gp *GCSProvider) Close() error {
	return gp.client.Close()
}

// Upload streams localPath to gs://<bucket>/<key>
func (gp *GCSProvider) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", newStorageError("failed to open artifact", err)
	}
	defer f.Close()

	writer := gp.client.Bucket(gp.bucketName).Object(key).NewWriter(ctx)
	writer.Metadata = map[string]string{
		"created-by": "pms-backup",
	}

	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return "", newStorageError("failed to write artifact to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return "", newStorageError("failed to upload artifact to GCS", err)
	}

	return "gs://" + gp.bucketName + "/" + key, nil
}
