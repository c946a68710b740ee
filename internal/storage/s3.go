package storage

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Provider uploads artifacts to an S3 bucket
type S3Provider struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
}

// NewS3Provider creates a new S3Provider instance. Without static keys the
// default AWS credential chain is used.
func NewS3Provider(config S3Config) (*S3Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, newStorageError("invalid S3 storage configuration", err)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(config.ForcePathStyle)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, newStorageError("failed to create AWS session", err)
	}

	return &S3Provider{
		uploader: s3manager.NewUploader(sess),
		bucket:   config.Bucket,
	}, nil
}

func (sp *S3Provider) Name() string { return string(ProviderS3) }

func (sp *S3Provider) Close() error { return nil }

// Upload streams localPath to s3://<bucket>/<key> with multipart uploads
func (sp *S3Provider) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", newStorageError("failed to open artifact", err)
	}
	defer f.Close()

	out, err := sp.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(key),
		Body:   f,
		Metadata: map[string]*string{
			"created-by": aws.String("pms-backup"),
		},
	})
	if err != nil {
		return "", newStorageError("failed to upload artifact to S3", err)
	}

	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return "s3://" + sp.bucket + "/" + key, nil
}
