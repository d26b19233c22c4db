package retroarch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "retroarch.cfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProbeConfigAcceptsExpectedValues(t *testing.T) {
	path := writeConfig(t, "network_cmd_port = \"55355\"\nsavestate_thumbnail_enable = \"true\"\n")
	w := ProbeConfig(path)
	assert.Empty(t, w.Warnings)
}

func TestProbeConfigWarnsOnWrongPort(t *testing.T) {
	path := writeConfig(t, "network_cmd_port = \"55000\"\nsavestate_thumbnail_enable = \"true\"\n")
	w := ProbeConfig(path)
	require.Len(t, w.Warnings, 1)
	assert.Contains(t, w.Warnings[0], "network_cmd_port")
}

func TestProbeConfigWarnsOnThumbnailDisabled(t *testing.T) {
	path := writeConfig(t, "network_cmd_port = \"55355\"\nsavestate_thumbnail_enable = \"false\"\n")
	w := ProbeConfig(path)
	require.Len(t, w.Warnings, 1)
	assert.Contains(t, w.Warnings[0], "savestate_thumbnail_enable")
}

func TestProbeConfigWarnsOnMissingSettings(t *testing.T) {
	path := writeConfig(t, "some_other_setting = \"1\"\n")
	w := ProbeConfig(path)
	assert.Len(t, w.Warnings, 2)
}

func TestProbeConfigWarnsWhenFileMissing(t *testing.T) {
	w := ProbeConfig("/no/such/retroarch.cfg")
	require.Len(t, w.Warnings, 1)
	assert.Contains(t, w.Warnings[0], "could not read")
}
