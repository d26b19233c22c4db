package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go-romm-sync/constants"
)

// NetworkContentLoaded interprets a GET_STATUS reply per spec.md §4.4.4: a
// reply that is non-empty, isn't the literal "N/A", and doesn't mention
// CONTENTLESS or MENU indicates a game is loaded.
func NetworkContentLoaded(status string) bool {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" || trimmed == "N/A" {
		return false
	}
	upper := strings.ToUpper(trimmed)
	return !strings.Contains(upper, "CONTENTLESS") && !strings.Contains(upper, "MENU")
}

// PlaylistEntry is the first element of a RetroArch content-history
// playlist's "items" array.
type PlaylistEntry struct {
	Path string `json:"path"`
}

// ParsePlaylistContentPath reads a playlist JSON payload and returns the
// most recently loaded content path, splitting an "archive.zip#inner" form
// into its archive component (spec.md §4.4.4).
func ParsePlaylistContentPath(data []byte) (string, error) {
	var playlist struct {
		Items []PlaylistEntry `json:"items"`
	}
	if err := json.Unmarshal(data, &playlist); err != nil {
		return "", fmt.Errorf("failed to parse playlist: %w", err)
	}
	if len(playlist.Items) == 0 {
		return "", fmt.Errorf("playlist has no entries")
	}
	path := playlist.Items[0].Path
	if idx := strings.Index(path, "#"); idx >= 0 {
		path = path[:idx]
	}
	return path, nil
}

// ProcessRunning reports whether a process with the given base executable
// name is currently running, excluding this program's own PID. On Linux it
// scans /proc directly; elsewhere it shells out to a process-listing tool.
func ProcessRunning(binaryName string) bool {
	self := os.Getpid()
	if runtime.GOOS == constants.OSLinux {
		return scanProcLinux(binaryName, self)
	}
	return scanPS(binaryName, self)
}

func scanProcLinux(binaryName string, self int) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == binaryName {
			return true
		}
	}
	return false
}

func scanPS(binaryName string, self int) bool {
	out, err := exec.Command("ps", "-A", "-o", "pid=,comm=").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid == self {
			continue
		}
		if strings.Contains(fields[1], binaryName) {
			return true
		}
	}
	return false
}
