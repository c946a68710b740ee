package storage

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType selects where artifacts are copied after a backup
type ProviderType string

const (
	ProviderNone  ProviderType = "none"
	ProviderLocal ProviderType = "local"
	ProviderS3    ProviderType = "s3"
	ProviderAzure ProviderType = "azure"
	ProviderGCS   ProviderType = "gcs"
)

// Config holds the offsite storage configuration
type Config struct {
	Provider ProviderType `mapstructure:"provider" yaml:"provider"`
	Prefix   string       `mapstructure:"prefix" yaml:"prefix"`
	Local    LocalConfig  `mapstructure:"local" yaml:"local"`
	S3       S3Config     `mapstructure:"s3" yaml:"s3"`
	Azure    AzureConfig  `mapstructure:"azure" yaml:"azure"`
	GCS      GCSConfig    `mapstructure:"gcs" yaml:"gcs"`
}

// LocalConfig for a second copy on a mounted file system
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config for Amazon S3 or an S3 compatible endpoint
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// Enabled reports whether artifacts should be shipped at all
func (c *Config) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// SetDefaults sets default values for unspecified options
func (c *Config) SetDefaults() {
	c.Provider = ProviderType(strings.ToLower(string(c.Provider)))
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if c.Local.Permissions == 0 {
		c.Local.Permissions = 0o640
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks the section of the selected provider
func (c *Config) Validate() error {
	switch c.Provider {
	case "", ProviderNone:
		return nil
	case ProviderLocal:
		return c.Local.Validate()
	case ProviderS3:
		return c.S3.Validate()
	case ProviderAzure:
		return c.Azure.Validate()
	case ProviderGCS:
		return c.GCS.Validate()
	default:
		return fmt.Errorf("unsupported storage provider '%s', must be one of: none, local, s3, azure, gcs", c.Provider)
	}
}

// Validate validates the local storage configuration
func (lc *LocalConfig) Validate() error {
	if lc.BasePath == "" {
		return fmt.Errorf("local storage base_path is required")
	}
	return nil
}

// Validate validates the S3 storage configuration
func (sc *S3Config) Validate() error {
	if sc.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if sc.Region == "" {
		return fmt.Errorf("S3 region is required")
	}
	if (sc.AccessKey == "") != (sc.SecretKey == "") {
		return fmt.Errorf("S3 access_key and secret_key must be set together")
	}
	return nil
}

// Validate validates the Azure storage configuration
func (ac *AzureConfig) Validate() error {
	if ac.AccountName == "" {
		return fmt.Errorf("Azure account_name is required")
	}
	if ac.AccountKey == "" {
		return fmt.Errorf("Azure account_key is required")
	}
	if ac.ContainerName == "" {
		return fmt.Errorf("Azure container_name is required")
	}
	return nil
}

// Validate validates the GCS storage configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return fmt.Errorf("GCS bucket is required")
	}
	return nil
}
