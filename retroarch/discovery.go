package retroarch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go-romm-sync/constants"
)

// candidate is a ranked installation guess; lower Priority wins.
type candidate struct {
	Path     string
	Priority int
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func executableCandidates() []candidate {
	home := homeDir()
	var list []candidate

	switch runtime.GOOS {
	case constants.OSLinux:
		list = append(list,
			candidate{filepath.Join(home, "retrodeck", "retroarch", "retroarch"), 2},
			candidate{filepath.Join(home, ".var", "app", "org.libretro.RetroArch", "current", "active", "files", "retroarch"), 3},
			candidate{"/usr/bin/retroarch", 1},
			candidate{"/usr/local/bin/retroarch", 1},
			candidate{"/opt/retroarch/retroarch", 1},
			candidate{filepath.Join(home, ".steam", "steam", "steamapps", "common", "RetroArch", "retroarch"), 2},
			candidate{filepath.Join(home, "snap", "retroarch", "current", "usr", "bin", "retroarch"), 4},
		)
	case constants.OSDarwin:
		list = append(list,
			candidate{"/Applications/RetroArch.app", 1},
			candidate{filepath.Join(home, "Applications", "RetroArch.app"), 2},
		)
	case constants.OSWindows:
		list = append(list,
			candidate{`C:\RetroArch-Win64\retroarch.exe`, 1},
			candidate{filepath.Join(home, "AppData", "Roaming", "RetroArch", "retroarch.exe"), 2},
		)
	}
	return list
}

// FindExecutable looks for a RetroArch binary across the installation kinds
// this platform supports, in priority order, falling back to PATH search.
func FindExecutable() (string, error) {
	candidates := executableCandidates()
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Priority < candidates[j].Priority })

	for _, c := range candidates {
		if _, err := os.Stat(c.Path); err == nil {
			return c.Path, nil
		}
	}

	if found, err := appImageSearch(); err == nil && found != "" {
		return found, nil
	}

	if path, err := exec.LookPath("retroarch"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("retroarch executable not found on this system")
}

func appImageSearch() (string, error) {
	dirs := []string{homeDir(), filepath.Join(homeDir(), "Applications"), filepath.Join(homeDir(), "Downloads")}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := strings.ToLower(e.Name())
			if strings.Contains(name, "retroarch") && strings.HasSuffix(name, ".appimage") {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", nil
}

func coresDirCandidates() []string {
	home := homeDir()
	switch runtime.GOOS {
	case constants.OSLinux:
		return []string{
			filepath.Join(home, "retrodeck", "cores"),
			filepath.Join(home, ".var", "app", "org.libretro.RetroArch", "config", "retroarch", "cores"),
			filepath.Join(home, ".config", "retroarch", "cores"),
			"/usr/lib/x86_64-linux-gnu/libretro",
			filepath.Join(home, ".steam", "steam", "steamapps", "common", "RetroArch", "cores"),
			filepath.Join(home, "snap", "retroarch", "current", ".config", "retroarch", "cores"),
		}
	case constants.OSDarwin:
		return []string{filepath.Join(home, "Library", "Application Support", "RetroArch", "cores")}
	case constants.OSWindows:
		return []string{`C:\RetroArch-Win64\cores`, filepath.Join(home, "AppData", "Roaming", "RetroArch", "cores")}
	}
	return nil
}

// FindCoresDirectory returns the first candidate cores directory that
// contains at least one installed core.
func FindCoresDirectory() (string, error) {
	ext := getCoreExt()
	for _, dir := range coresDirCandidates() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
				return dir, nil
			}
		}
	}
	return "", fmt.Errorf("no RetroArch cores directory found with installed cores")
}

func configDirCandidates() []string {
	home := homeDir()
	switch runtime.GOOS {
	case constants.OSLinux:
		return []string{
			filepath.Join(home, "retrodeck", "retroarch"),
			filepath.Join(home, ".var", "app", "org.libretro.RetroArch", "config", "retroarch"),
			filepath.Join(home, ".config", "retroarch"),
			filepath.Join(home, ".steam", "steam", "steamapps", "compatdata", "1118310", "pfx", "drive_c", "users", "steamuser", "AppData", "Roaming", "RetroArch"),
			filepath.Join(home, "snap", "retroarch", "current", ".config", "retroarch"),
			"/etc/retroarch",
			"/usr/local/etc/retroarch",
		}
	case constants.OSDarwin:
		return []string{filepath.Join(home, "Library", "Application Support", "RetroArch", "config")}
	case constants.OSWindows:
		return []string{`C:\RetroArch-Win64`, filepath.Join(home, "AppData", "Roaming", "RetroArch")}
	}
	return nil
}

// FindDirs locates the saves and states directories for a RetroArch
// installation, trying each candidate config/base directory in turn and
// stopping at the first one that has either subdirectory.
func FindDirs(customConfigDir string) (savesDir, statesDir string, err error) {
	candidates := configDirCandidates()
	if customConfigDir != "" {
		candidates = append([]string{customConfigDir}, candidates...)
	}

	for _, base := range candidates {
		saves := filepath.Join(base, "saves")
		states := filepath.Join(base, "states")
		_, saveErr := os.Stat(saves)
		_, stateErr := os.Stat(states)
		if saveErr == nil || stateErr == nil {
			return saves, states, nil
		}
	}
	return "", "", fmt.Errorf("no RetroArch saves/states directories found")
}

var coreNameKeywords = []string{
	"snes9x", "beetle", "mgba", "nestopia", "gambatte", "fceumm",
	"genesis plus gx", "plus gx", "genesis_plus_gx", "mupen64plus",
	"parallel n64", "blastem", "picodrive", "pcsx rearmed", "swanstation",
	"flycast", "redream", "stella", "handy", "prosystem", "vecx", "o2em",
}

var platformSlugKeywords = []string{
	"snes", "nes", "gba", "psx", "genesis", "megadrive", "n64",
}

// DetectSaveFolderStructure classifies the subdirectories of saveDir as
// core-name-keyed ("core_names"), platform-slug-keyed ("platform_slugs"),
// or "unknown" if neither keyword set has a clear majority.
func DetectSaveFolderStructure(saveDir string) string {
	entries, err := os.ReadDir(saveDir)
	if err != nil {
		return "unknown"
	}

	coreVotes, slugVotes := 0, 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		for _, kw := range coreNameKeywords {
			if strings.Contains(name, kw) {
				coreVotes++
				break
			}
		}
		for _, kw := range platformSlugKeywords {
			if name == kw || strings.Contains(name, kw) {
				slugVotes++
				break
			}
		}
	}

	switch {
	case coreVotes == 0 && slugVotes == 0:
		return "unknown"
	case coreVotes > slugVotes:
		return "core_names"
	case slugVotes > coreVotes:
		return "platform_slugs"
	default:
		return "unknown"
	}
}
