package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalProvider copies artifacts into another directory, typically a mount
type LocalProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalProvider creates a new LocalProvider instance
func NewLocalProvider(config LocalConfig) (*LocalProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, newStorageError("invalid local storage configuration", err)
	}

	perm := config.Permissions
	if perm == 0 {
		perm = 0o640
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, newStorageError("failed to create base directory", err)
	}

	return &LocalProvider{
		basePath:    config.BasePath,
		permissions: perm,
	}, nil
}

func (lp *LocalProvider) Name() string { return string(ProviderLocal) }

func (lp *LocalProvider) Close() error { return nil }

// Upload copies localPath to <base>/<key>. The copy is written to a
// temporary name first so a failed copy never leaves a truncated artifact.
func (lp *LocalProvider) Upload(ctx context.Context, localPath, key string) (string, error) {
	target := filepath.Join(lp.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", newStorageError("failed to create target directory", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", newStorageError("failed to open artifact", err)
	}
	defer src.Close()

	tmp := target + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, lp.permissions)
	if err != nil {
		return "", newStorageError("failed to create target file", err)
	}

	_, err = io.Copy(dst, &contextReader{ctx: ctx, r: src})
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", newStorageError("failed to copy artifact", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", newStorageError("failed to move artifact into place", err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return target, nil
	}
	return abs, nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
