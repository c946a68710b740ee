package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"pms-backup/internal/logging"
	"pms-backup/internal/uploads"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchiver() *Archiver {
	a := NewArchiver(0, logging.NewNopLogger())
	a.now = func() time.Time {
		return time.Date(2024, 3, 9, 2, 30, 0, 0, time.UTC)
	}
	return a
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func uploadTree(t *testing.T) (images, files string) {
	t.Helper()
	root := t.TempDir()
	images = filepath.Join(root, "upload", "images")
	files = filepath.Join(root, "upload", "files")

	writeFile(t, filepath.Join(images, "cat.png"), "meow")
	writeFile(t, filepath.Join(images, "holidays", "beach.jpg"), "sand")
	writeFile(t, filepath.Join(files, "invoice.pdf"), "pay up")
	return images, files
}

func readEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestArchiver_ZipRecursive(t *testing.T) {
	images, files := uploadTree(t)
	backupDir := t.TempDir()

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
		Directories: uploads.NewDirectoryMap(
			uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: images},
			uploads.DirectoryEntry{Module: uploads.ModuleMyFiles, Path: files},
		),
	})

	require.True(t, result.Succeeded, result.Message)
	assert.Equal(t, filepath.Join(backupDir, "files_2024-03-09_02-30-00.zip"), result.Path)
	assert.Equal(t, 3, result.Files)
	assert.Greater(t, result.Bytes, int64(0))
	assert.Contains(t, result.Message, result.Path)

	entries := readEntries(t, result.Path)
	assert.Equal(t, []string{
		"My Files/invoice.pdf",
		"My Images/cat.png",
		"My Images/holidays/beach.jpg",
	}, keys(entries))
	assert.Equal(t, "sand", entries["My Images/holidays/beach.jpg"])
}

func TestArchiver_ZipNonRecursive(t *testing.T) {
	images, _ := uploadTree(t)

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: t.TempDir(),
		Recursive:       false,
		ArchiveName:     "files",
		Directories:     uploads.NewDirectoryMap(uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: images}),
	})

	require.True(t, result.Succeeded, result.Message)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, []string{"My Images/cat.png"}, keys(readEntries(t, result.Path)))
}

func TestArchiver_EmptyDirectoryMap(t *testing.T) {
	backupDir := t.TempDir()

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
	})

	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Message, "Nothing to archive")

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiver_MissingDirectory(t *testing.T) {
	backupDir := t.TempDir()

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
		Directories: uploads.NewDirectoryMap(uploads.DirectoryEntry{
			Module: uploads.ModuleMyFiles,
			Path:   filepath.Join(backupDir, "does-not-exist"),
		}),
	})

	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Message, "Files archive has failed")
	assert.Contains(t, result.Message, uploads.ModuleMyFiles)
	assert.Empty(t, result.Path)
}

func TestArchiver_CancelledContextRemovesArchive(t *testing.T) {
	images, files := uploadTree(t)
	backupDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestArchiver().Zip(ctx, Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
		Directories: uploads.NewDirectoryMap(
			uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: images},
			uploads.DirectoryEntry{Module: uploads.ModuleMyFiles, Path: files},
		),
	})

	assert.False(t, result.Succeeded)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiver_MissingRequestFields(t *testing.T) {
	result := newTestArchiver().Zip(context.Background(), Request{})
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Message, "backup directory and archive name are required")
}

func TestArchiver_FollowsSymlinkedUploadDirectory(t *testing.T) {
	shared := filepath.Join(t.TempDir(), "shared", "images")
	writeFile(t, filepath.Join(shared, "cat.png"), "meow")

	link := filepath.Join(t.TempDir(), "images")
	if err := os.Symlink(shared, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: t.TempDir(),
		Recursive:       true,
		ArchiveName:     "files",
		Directories:     uploads.NewDirectoryMap(uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: link}),
	})

	require.True(t, result.Succeeded, result.Message)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, []string{"My Images/cat.png"}, keys(readEntries(t, result.Path)))
}

func TestArchiver_SameSecondRunsKeepBothArchives(t *testing.T) {
	images, _ := uploadTree(t)
	backupDir := t.TempDir()
	archiver := newTestArchiver()

	req := Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
		Directories:     uploads.NewDirectoryMap(uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: images}),
	}

	first := archiver.Zip(context.Background(), req)
	second := archiver.Zip(context.Background(), req)

	require.True(t, first.Succeeded, first.Message)
	require.True(t, second.Succeeded, second.Message)
	assert.Equal(t, filepath.Join(backupDir, "files_2024-03-09_02-30-00.zip"), first.Path)
	assert.Equal(t, filepath.Join(backupDir, "files_2024-03-09_02-30-00_2.zip"), second.Path)
	assert.Len(t, readEntries(t, first.Path), 2)
}

func TestArchiver_SkipsItsOwnOutput(t *testing.T) {
	images, _ := uploadTree(t)
	backupDir := filepath.Join(images, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	result := newTestArchiver().Zip(context.Background(), Request{
		BackupDirectory: backupDir,
		Recursive:       true,
		ArchiveName:     "files",
		Directories:     uploads.NewDirectoryMap(uploads.DirectoryEntry{Module: uploads.ModuleMyImages, Path: images}),
	})

	require.True(t, result.Succeeded, result.Message)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, []string{"My Images/cat.png", "My Images/holidays/beach.jpg"}, keys(readEntries(t, result.Path)))
}
