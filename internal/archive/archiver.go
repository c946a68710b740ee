// Package archive packs upload directories into a single zip file.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pms-backup/internal/errors"
	"pms-backup/internal/logging"
	"pms-backup/internal/uploads"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

const (
	timestampLayout = "2006-01-02_15-04-05"
	maxNameAttempts = 100
)

// Request describes one archive run
type Request struct {
	BackupDirectory string
	Recursive       bool
	ArchiveName     string
	Directories     uploads.DirectoryMap
}

// Result is the outcome of one archive run
type Result struct {
	Succeeded bool
	Message   string
	Path      string
	Files     int
	Bytes     int64
}

// Archiver writes zip archives of module directories
type Archiver struct {
	level  int
	logger *logging.Logger
	now    func() time.Time
}

// NewArchiver creates an archiver using the given deflate level. Zero selects
// the default level.
func NewArchiver(level int, logger *logging.Logger) *Archiver {
	if level == 0 || level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Archiver{
		level:  level,
		logger: logger,
		now:    time.Now,
	}
}

// Zip archives every directory of req.Directories under a folder named after
// its module. Failures are reported in the result and leave no archive behind.
func (a *Archiver) Zip(ctx context.Context, req Request) Result {
	done := a.logger.LogOperationStart(ctx, "files_archive", map[string]interface{}{
		"modules":   strings.Join(req.Directories.Modules(), ","),
		"recursive": req.Recursive,
	})

	result, err := a.zip(ctx, req)
	done(err)

	if err != nil {
		return Result{
			Message: fmt.Sprintf("Files archive has failed: %s", errors.FormatUserError(err)),
		}
	}
	return result
}

func (a *Archiver) zip(ctx context.Context, req Request) (Result, error) {
	if req.BackupDirectory == "" || req.ArchiveName == "" {
		return Result{}, errors.NewConfigurationError("backup directory and archive name are required", nil)
	}
	if req.Directories.Len() == 0 {
		return Result{}, errors.NewAppError(errors.ErrorTypeFileSystem, "nothing to archive", nil).
			WithUserMessage("Nothing to archive - every upload module was skipped")
	}

	entries := req.Directories.Entries()
	roots := make([]string, len(entries))
	for i, entry := range entries {
		root, err := resolveDirectory(entry)
		if err != nil {
			return Result{}, err
		}
		roots[i] = root
	}

	if err := os.MkdirAll(req.BackupDirectory, 0o755); err != nil {
		return Result{}, errors.WrapError(err, "failed to create backup directory")
	}

	zipFile, path, err := a.createArchiveFile(req.BackupDirectory, req.ArchiveName)
	if err != nil {
		return Result{}, errors.WrapError(err, "failed to create archive file")
	}
	output := path
	if resolved, err := resolvePath(path); err == nil {
		output = resolved
	}

	zw := zip.NewWriter(zipFile)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	files := 0
	var walkErr error
	for i, entry := range entries {
		n, err := a.addDirectory(ctx, zw, entry, roots[i], output, req.Recursive)
		files += n
		if err != nil {
			walkErr = err
			break
		}
	}

	if closeErr := zw.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if closeErr := zipFile.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		os.Remove(path)
		return Result{}, walkErr
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	return Result{
		Succeeded: true,
		Message:   fmt.Sprintf("Files have been archived to %s (%d files from %s)", path, files, strings.Join(req.Directories.Modules(), ", ")),
		Path:      path,
		Files:     files,
		Bytes:     size,
	}, nil
}

// resolveDirectory returns the absolute, symlink free path of an upload
// directory. WalkDir does not descend into a symlinked root.
func resolveDirectory(entry uploads.DirectoryEntry) (string, error) {
	root, err := resolvePath(entry.Path)
	if err != nil {
		return "", errors.WrapError(err, fmt.Sprintf("upload directory of %s is not accessible", entry.Module))
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", errors.WrapError(err, fmt.Sprintf("upload directory of %s is not accessible", entry.Module))
	}
	if !info.IsDir() {
		return "", errors.NewAppError(errors.ErrorTypeFileSystem,
			fmt.Sprintf("upload path of %s is not a directory: %s", entry.Module, entry.Path), nil)
	}
	return root, nil
}

func resolvePath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// createArchiveFile creates a new archive next to earlier ones. Runs within
// the same second get a numeric suffix instead of replacing a finished archive.
func (a *Archiver) createArchiveFile(dir, name string) (*os.File, string, error) {
	base := fmt.Sprintf("%s_%s", name, a.now().Format(timestampLayout))
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		fileName := base + ".zip"
		if attempt > 1 {
			fileName = fmt.Sprintf("%s_%d.zip", base, attempt)
		}
		path := filepath.Join(dir, fileName)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%d archives named %s already exist", maxNameAttempts, base)
}

func (a *Archiver) addDirectory(ctx context.Context, zw *zip.Writer, entry uploads.DirectoryEntry, root, output string, recursive bool) (int, error) {
	prefix := strings.Trim(filepath.ToSlash(entry.Module), "/")
	files := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path == output {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if rel != "." && !recursive {
				return filepath.SkipDir
			}
			name := prefix + "/"
			if rel != "." {
				name = prefix + "/" + filepath.ToSlash(rel) + "/"
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			header.Name = name
			_, err = zw.CreateHeader(header)
			return err
		}

		if !d.Type().IsRegular() {
			a.logger.WithContext(ctx).WithField("path", path).Debug("Skipping non-regular file")
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = prefix + "/" + filepath.ToSlash(rel)
		header.Method = zip.Deflate

		writer, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(writer, f)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
		files++
		return nil
	})
	if err != nil {
		return files, errors.WrapError(err, fmt.Sprintf("failed to archive %s", entry.Module))
	}
	return files, nil
}
