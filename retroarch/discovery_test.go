package retroarch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSaveFolderStructureCoreNames(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "snes9x"), 0o755)
	os.MkdirAll(filepath.Join(dir, "gambatte"), 0o755)
	os.MkdirAll(filepath.Join(dir, "mgba"), 0o755)

	assert.Equal(t, "core_names", DetectSaveFolderStructure(dir))
}

func TestDetectSaveFolderStructurePlatformSlugs(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "snes"), 0o755)
	os.MkdirAll(filepath.Join(dir, "nes"), 0o755)
	os.MkdirAll(filepath.Join(dir, "n64"), 0o755)

	assert.Equal(t, "platform_slugs", DetectSaveFolderStructure(dir))
}

func TestDetectSaveFolderStructureUnknownWhenEmptyOrAmbiguous(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "unknown", DetectSaveFolderStructure(dir))

	os.MkdirAll(filepath.Join(dir, "random_stuff"), 0o755)
	assert.Equal(t, "unknown", DetectSaveFolderStructure(dir))
}

func TestDetectSaveFolderStructureMissingDir(t *testing.T) {
	assert.Equal(t, "unknown", DetectSaveFolderStructure("/no/such/dir"))
}

func TestFindDirsUsesCustomConfigDirFirst(t *testing.T) {
	dir := t.TempDir()
	require := assert.New(t)
	require.NoError(os.MkdirAll(filepath.Join(dir, "saves"), 0o755))

	saves, states, err := FindDirs(dir)
	require.NoError(err)
	require.Equal(filepath.Join(dir, "saves"), saves)
	require.Equal(filepath.Join(dir, "states"), states)
}

func TestFindCoresDirectoryFailsWhenNoneFound(t *testing.T) {
	// Without a custom override, real installation paths are unlikely to
	// exist in a throwaway test environment.
	_, err := FindCoresDirectory()
	if err == nil {
		t.Skip("a real RetroArch install was found on this machine")
	}
}
