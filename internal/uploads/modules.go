// Package uploads knows which upload-based modules own directories of user
// content and how to select a subset of them for a file backup.
package uploads

import (
	"path/filepath"
	"strings"
)

// Module names as exposed on the command line.
const (
	ModuleMyImages = "My Images"
	ModuleMyFiles  = "My Files"
)

// Registry lists the known upload modules in backup order.
var Registry = []string{
	ModuleMyImages,
	ModuleMyFiles,
}

// EnvConfig provides the configured upload subdirectories.
type EnvConfig interface {
	ImagesUploadDir() string
	FilesUploadDir() string
}

// IsKnown reports whether name is a registered upload module.
func IsKnown(name string) bool {
	for _, module := range Registry {
		if module == name {
			return true
		}
	}
	return false
}

// NamesList renders the registry for help texts.
func NamesList() string {
	return strings.Join(Registry, ", ")
}

// DirectoryEntry pairs a module with the directory holding its uploads.
type DirectoryEntry struct {
	Module string
	Path   string
}

// DirectoryMap is an ordered module name -> directory mapping.
type DirectoryMap struct {
	entries []DirectoryEntry
}

// NewDirectoryMap builds a map from entries, keeping the first path for a
// repeated module name.
func NewDirectoryMap(entries ...DirectoryEntry) DirectoryMap {
	dm := DirectoryMap{entries: make([]DirectoryEntry, 0, len(entries))}
	for _, entry := range entries {
		if _, exists := dm.Path(entry.Module); exists {
			continue
		}
		dm.entries = append(dm.entries, entry)
	}
	return dm
}

// BuildDirectoryMap resolves the directories of every registered module
// below publicRoot.
func BuildDirectoryMap(publicRoot string, env EnvConfig) DirectoryMap {
	return NewDirectoryMap(
		DirectoryEntry{Module: ModuleMyImages, Path: filepath.Join(publicRoot, env.ImagesUploadDir())},
		DirectoryEntry{Module: ModuleMyFiles, Path: filepath.Join(publicRoot, env.FilesUploadDir())},
	)
}

// Without returns a copy of the map minus every module in skipped. Names
// that are not in the map are ignored.
func (dm DirectoryMap) Without(skipped SkipSet) DirectoryMap {
	filtered := DirectoryMap{entries: make([]DirectoryEntry, 0, len(dm.entries))}
	for _, entry := range dm.entries {
		if skipped.Contains(entry.Module) {
			continue
		}
		filtered.entries = append(filtered.entries, entry)
	}
	return filtered
}

// Path returns the directory registered for module.
func (dm DirectoryMap) Path(module string) (string, bool) {
	for _, entry := range dm.entries {
		if entry.Module == module {
			return entry.Path, true
		}
	}
	return "", false
}

// Entries returns the entries in order.
func (dm DirectoryMap) Entries() []DirectoryEntry {
	out := make([]DirectoryEntry, len(dm.entries))
	copy(out, dm.entries)
	return out
}

// Modules returns the module names in order.
func (dm DirectoryMap) Modules() []string {
	names := make([]string, 0, len(dm.entries))
	for _, entry := range dm.entries {
		names = append(names, entry.Module)
	}
	return names
}

// Len returns the number of entries.
func (dm DirectoryMap) Len() int {
	return len(dm.entries)
}
