package retroarch

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	networkCmdPortRe   = regexp.MustCompile(`(?i)^\s*network_cmd_port\s*=\s*"?(\d+)"?`)
	thumbnailEnableRe  = regexp.MustCompile(`(?i)^\s*savestate_thumbnail_enable\s*=\s*"?(true|false)"?`)
)

// ConfigWarnings holds non-fatal issues found while probing a retroarch.cfg,
// surfaced to the user rather than treated as sync failures.
type ConfigWarnings struct {
	Warnings []string
}

func (w *ConfigWarnings) add(format string, args ...interface{}) {
	w.Warnings = append(w.Warnings, fmt.Sprintf(format, args...))
}

// ProbeConfig reads retroarch.cfg at configPath and warns if network_cmd_port
// isn't the expected 55355 or savestate_thumbnail_enable is off, both of
// which degrade auto-sync's UDP notifications and screenshot capture.
func ProbeConfig(configPath string) *ConfigWarnings {
	w := &ConfigWarnings{}

	f, err := os.Open(configPath)
	if err != nil {
		w.add("could not read retroarch.cfg at %s: %v", configPath, err)
		return w
	}
	defer f.Close()

	foundPort, foundThumb := false, false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := networkCmdPortRe.FindStringSubmatch(line); m != nil {
			foundPort = true
			if m[1] != fmt.Sprintf("%d", 55355) {
				w.add("network_cmd_port is set to %s, expected 55355 for auto-sync notifications", m[1])
			}
		}
		if m := thumbnailEnableRe.FindStringSubmatch(line); m != nil {
			foundThumb = true
			if strings.EqualFold(m[1], "false") {
				w.add("savestate_thumbnail_enable is off; state screenshots will not be captured")
			}
		}
	}

	if !foundPort {
		w.add("network_cmd_port not set in retroarch.cfg; defaulting to 55355")
	}
	if !foundThumb {
		w.add("savestate_thumbnail_enable not set in retroarch.cfg; state screenshots may be unavailable")
	}

	return w
}
