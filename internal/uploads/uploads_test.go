package uploads

import (
	"path/filepath"
	"testing"

	apperrors "pms-backup/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticEnv struct {
	images string
	files  string
}

func (e staticEnv) ImagesUploadDir() string { return e.images }
func (e staticEnv) FilesUploadDir() string  { return e.files }

func TestBuildDirectoryMap(t *testing.T) {
	dm := BuildDirectoryMap("/srv/pms/public", staticEnv{images: "upload/images", files: "upload/files"})

	require.Equal(t, 2, dm.Len())
	assert.Equal(t, []string{ModuleMyImages, ModuleMyFiles}, dm.Modules())

	path, ok := dm.Path(ModuleMyImages)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/pms/public", "upload/images"), path)

	path, ok = dm.Path(ModuleMyFiles)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/pms/public", "upload/files"), path)
}

func TestDirectoryMapWithout(t *testing.T) {
	dm := NewDirectoryMap(
		DirectoryEntry{Module: "MyImages", Path: "/pub/img"},
		DirectoryEntry{Module: "MyFiles", Path: "/pub/files"},
	)

	t.Run("removes exactly the skipped modules", func(t *testing.T) {
		filtered := dm.Without(NewSkipSet("MyImages"))
		assert.Equal(t, []DirectoryEntry{{Module: "MyFiles", Path: "/pub/files"}}, filtered.Entries())
	})

	t.Run("unknown names leave the map unchanged", func(t *testing.T) {
		filtered := dm.Without(NewSkipSet("Nope", "Other"))
		assert.Equal(t, dm.Entries(), filtered.Entries())
	})

	t.Run("skipping everything empties the map", func(t *testing.T) {
		filtered := dm.Without(NewSkipSet("MyImages", "MyFiles"))
		assert.Equal(t, 0, filtered.Len())
	})

	t.Run("original map is not modified", func(t *testing.T) {
		_ = dm.Without(NewSkipSet("MyImages"))
		assert.Equal(t, 2, dm.Len())
	})
}

func TestNewDirectoryMapKeepsFirstDuplicate(t *testing.T) {
	dm := NewDirectoryMap(
		DirectoryEntry{Module: "A", Path: "/a"},
		DirectoryEntry{Module: "A", Path: "/other"},
	)
	path, _ := dm.Path("A")
	assert.Equal(t, 1, dm.Len())
	assert.Equal(t, "/a", path)
}

func TestParseSkipModules(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"no flag", nil, []string{}},
		{"empty value", []string{""}, []string{}},
		{"single name", []string{"My Images"}, []string{"My Images"}},
		{"comma separated", []string{"My Images,My Files"}, []string{"My Files", "My Images"}},
		{"escaped spaces", []string{`My\ Images,My\ Files`}, []string{"My Files", "My Images"}},
		{"escaped backslash", []string{`My\\Files`}, []string{`My\Files`}},
		{"escaped letter", []string{`My\Images`}, []string{"MyImages"}},
		{"whitespace is kept", []string{"My Images, My Files"}, []string{" My Files", "My Images"}},
		{"json list", []string{`["My Images","My Files"]`}, []string{"My Files", "My Images"}},
		{"repeated flag", []string{"My Images", "My Files"}, []string{"My Files", "My Images"}},
		{"unknown names kept", []string{"Gallery"}, []string{"Gallery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseSkipModules(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Names())
		})
	}
}

func TestParseSkipModules_JSONMatchesCommaForm(t *testing.T) {
	fromComma, err := ParseSkipModules([]string{`My\ Images,My\ Files`})
	require.NoError(t, err)
	fromJSON, err := ParseSkipModules([]string{`["My Images", "My Files"]`})
	require.NoError(t, err)

	assert.Equal(t, fromComma, fromJSON)
}

func TestParseSkipModules_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"broken json", `["My Images"`},
		{"json of wrong type", `[1, 2]`},
		{"invalid utf-8", "My\xffImages"},
		{"control character", "My\nImages"},
		{"dangling escape", `My Images\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseSkipModules([]string{tt.value})
			require.Error(t, err)
			assert.Nil(t, set)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
		})
	}
}

func TestSkipSetUnknown(t *testing.T) {
	set := NewSkipSet(ModuleMyFiles, "Gallery")
	assert.Equal(t, []string{"Gallery"}, set.Unknown())
	assert.True(t, set.Contains(ModuleMyFiles))
	assert.False(t, set.Contains(ModuleMyImages))
}

func TestNamesList(t *testing.T) {
	assert.Equal(t, "My Images, My Files", NamesList())
}
