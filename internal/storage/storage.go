// Package storage copies finished backup artifacts to an offsite location.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	apperrors "pms-backup/internal/errors"
	"pms-backup/internal/logging"
)

// Provider uploads one local file under key and returns where it landed
type Provider interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Name() string
	Close() error
}

// NewProvider creates the provider selected by config. It returns a nil
// provider when shipping is disabled.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid storage configuration", err)
	}

	switch config.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderLocal:
		provider, err := NewLocalProvider(config.Local)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ProviderS3:
		provider, err := NewS3Provider(config.S3)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ProviderAzure:
		provider, err := NewAzureProvider(config.Azure)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ProviderGCS:
		provider, err := NewGCSProvider(ctx, config.GCS)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
}

// ObjectKey builds the remote key of localPath below prefix
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Opener builds the provider a Shipper uploads through
type Opener func(ctx context.Context) (Provider, error)

// ConfigOpener opens the provider selected by config
func ConfigOpener(config Config) Opener {
	return func(ctx context.Context) (Provider, error) {
		return NewProvider(ctx, config)
	}
}

// Shipper sends artifacts through a provider using a fixed key prefix.
// The provider is opened on the first Ship, so an unreachable store fails
// the upload instead of the whole run.
type Shipper struct {
	open     Opener
	provider Provider
	openErr  error
	opened   bool
	prefix   string
	logger   *logging.Logger
}

// NewShipper creates a shipper that opens its provider with open
func NewShipper(open Opener, prefix string, logger *logging.Logger) *Shipper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Shipper{open: open, prefix: prefix, logger: logger}
}

// Ship uploads the file at localPath and returns its remote location
func (s *Shipper) Ship(ctx context.Context, localPath string) (string, error) {
	provider, err := s.providerFor(ctx)
	if err != nil {
		return "", err
	}

	key := ObjectKey(s.prefix, localPath)
	done := s.logger.LogOperationStart(ctx, "artifact_upload", map[string]interface{}{
		"provider": provider.Name(),
		"key":      key,
	})

	location, err := provider.Upload(ctx, localPath, key)
	done(err)
	if err != nil {
		return "", err
	}
	return location, nil
}

func (s *Shipper) providerFor(ctx context.Context) (Provider, error) {
	if !s.opened {
		s.opened = true
		s.provider, s.openErr = s.open(ctx)
		if s.openErr != nil {
			s.provider = nil
		} else if s.provider == nil {
			s.openErr = apperrors.NewConfigurationError("no storage provider is configured", nil)
		}
		if s.openErr != nil {
			s.logger.WithContext(ctx).WithError(s.openErr).Error("Failed to set up offsite storage")
		}
	}
	if s.openErr != nil {
		return nil, newStorageError("offsite storage is unavailable", s.openErr).
			WithUserMessage(fmt.Sprintf("offsite storage is unavailable: %s", apperrors.FormatUserError(s.openErr)))
	}
	return s.provider, nil
}

// Close releases the provider if it was opened
func (s *Shipper) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}

func newStorageError(message string, cause error) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrorTypeStorage, message, cause)
}
