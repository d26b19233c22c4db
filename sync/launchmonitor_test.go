package sync

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkContentLoaded(t *testing.T) {
	assert.False(t, NetworkContentLoaded(""))
	assert.False(t, NetworkContentLoaded("N/A"))
	assert.False(t, NetworkContentLoaded("GET_STATUS CONTENTLESS"))
	assert.False(t, NetworkContentLoaded("GET_STATUS MENU"))
	assert.True(t, NetworkContentLoaded("GET_STATUS PLAYING chrono_trigger.sfc,snes9x,crc32=abc123"))
}

func TestParsePlaylistContentPath(t *testing.T) {
	data := []byte(`{"items":[{"path":"/roms/snes/Chrono Trigger.zip#Chrono Trigger.sfc"},{"path":"older.sfc"}]}`)
	path, err := ParsePlaylistContentPath(data)
	assert.NoError(t, err)
	assert.Equal(t, "/roms/snes/Chrono Trigger.zip", path)
}

func TestParsePlaylistContentPathNoItems(t *testing.T) {
	_, err := ParsePlaylistContentPath([]byte(`{"items":[]}`))
	assert.Error(t, err)
}

func TestProcessRunningFalseForAbsentBinary(t *testing.T) {
	// This process itself isn't named after a fixed binary we can assert on
	// portably, but a definitely-absent name must return false.
	assert.False(t, ProcessRunning("definitely-not-a-real-binary-name-xyz"))
	_ = os.Getpid()
}
