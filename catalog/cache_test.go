package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-romm-sync/types"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewCreatesDefaultOnFirstRun(t *testing.T) {
	c := newTestCache(t)
	assert.Empty(t, c.Games())
	assert.Equal(t, "Super Nintendo Entertainment System", c.PlatformName("snes"))
}

func TestUpdatePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	games := []types.Game{
		{ID: 1, Name: "Chrono Trigger", FileName: "Chrono Trigger.sfc", PlatformSlug: "snes",
			RommData: map[string]any{"fs_name": "Chrono Trigger.sfc", "fs_name_no_ext": "Chrono Trigger", "platform_name": "Super Nintendo Entertainment System", "platform_slug": "snes"}},
	}
	c.Update(games)

	entry, ok := c.LookupFilename("Chrono Trigger.sfc")
	require.True(t, ok)
	assert.Equal(t, "Chrono Trigger", entry.Name)
	assert.Equal(t, uint(1), entry.RomID)

	entry, ok = c.LookupFilename("Chrono Trigger.zip")
	require.True(t, ok, "extension variation should be mapped")
	assert.Equal(t, uint(1), entry.RomID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, "games_data.json")); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	reloaded, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	reloadedGames := reloaded.Games()
	require.Len(t, reloadedGames, 1)
	assert.Equal(t, "Super Nintendo Entertainment System", reloadedGames[0].PlatformName)
}

func TestExpiredCacheIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	stale := onDiskCache{Timestamp: float64(time.Now().Add(-48 * time.Hour).Unix()), Count: 1, Games: []types.Game{{ID: 1, Name: "Old"}}}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "games_data.json"), payload, 0o644))

	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, c.Games())
}
