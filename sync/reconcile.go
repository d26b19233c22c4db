package sync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-romm-sync/constants"
)

// ConflictDecision is the outcome of comparing a local file against its
// server-side record (spec.md §4.4.5 step 5).
type ConflictDecision int

const (
	DecisionSkip ConflictDecision = iota
	DecisionDownloadFromServer
	DecisionKeepLocal
	DecisionAsk
)

// DecideConflict applies one of the four configurable overwrite policies to
// a local/server timestamp pair. localMtime and serverUpdatedAt must both be
// UTC.
func DecideConflict(policy string, localMtime, serverUpdatedAt time.Time) ConflictDecision {
	switch policy {
	case constants.PolicyPreferLocal:
		return DecisionKeepLocal
	case constants.PolicyPreferServer:
		return DecisionDownloadFromServer
	case constants.PolicyAsk:
		return DecisionAsk
	case constants.PolicySmart:
		fallthrough
	default:
		if serverUpdatedAt.Sub(localMtime) > constants.SmartServerWinSeconds*time.Second {
			return DecisionDownloadFromServer
		}
		if localMtime.Sub(serverUpdatedAt) > constants.SmartLocalWinSeconds*time.Second {
			return DecisionKeepLocal
		}
		return DecisionSkip
	}
}

var (
	timestampBracketRe = regexp.MustCompile(`\s*\[[\d\-\s:]+\]`)
	regionTagRe        = regexp.MustCompile(`\s*\([^)]*\)`)
)

// stripTimestamp removes a RomM-style embedded "[YYYY-MM-DD HH-MM-SS-mmm]"
// bracket from a base filename (spec.md §3).
func stripTimestamp(name string) string {
	return strings.TrimSpace(timestampBracketRe.ReplaceAllString(name, ""))
}

func stripRegionTags(name string) string {
	return strings.TrimSpace(regionTagRe.ReplaceAllString(name, ""))
}

// MatchFileToROM resolves an arbitrary local save/state base name (already
// stripped of its directory and extension) to a ROM's fs_name_no_ext,
// trying an exact match first and then a region-tag-stripped comparison
// (spec.md §4.4.5, "file-to-ROM matching").
func MatchFileToROM(localBaseName string, candidates map[string]uint) (uint, bool) {
	clean := stripTimestamp(localBaseName)
	if id, ok := candidates[clean]; ok {
		return id, true
	}

	strippedTarget := stripRegionTags(clean)
	for name, id := range candidates {
		if stripRegionTags(name) == strippedTarget {
			return id, true
		}
	}
	return 0, false
}

var stateSlotRe = regexp.MustCompile(`^\.state(\d)$`)

// SlotInfo derives (slot, autocleanup, autocleanupLimit) from a save/state
// filename's extension, per spec.md §3 and original_source's get_slot_info.
func SlotInfo(filename string) (slot string, autocleanup bool, autocleanupLimit int) {
	lower := strings.ToLower(filename)

	if strings.HasSuffix(lower, constants.ExtStateAuto) {
		return "auto", true, 5
	}

	ext := lower
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		ext = lower[idx:]
	}

	switch {
	case ext == constants.ExtSRM || ext == constants.ExtSAV:
		return "", false, 0
	case stateSlotRe.MatchString(ext):
		m := stateSlotRe.FindStringSubmatch(ext)
		return "slot" + m[1], true, 5
	case ext == constants.ExtState:
		return constants.SlotQuick, true, 10
	default:
		return "", false, 0
	}
}

// IsTrackedExtension reports whether name (lowercased, full file name) is a
// save or state file the watcher should react to (spec.md §4.4.2).
func IsTrackedExtension(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, constants.ExtStateAuto) {
		return true
	}
	switch {
	case strings.HasSuffix(lower, constants.ExtSRM), strings.HasSuffix(lower, constants.ExtSAV), strings.HasSuffix(lower, constants.ExtState):
		return true
	case stateSlotRe.MatchString(extOf(lower)):
		return true
	}
	return false
}

func extOf(lower string) string {
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		return lower[idx:]
	}
	return ""
}

// ConvertToLocalFilename renames a server-side, timestamp-bearing file name
// to the local RetroArch-expected form (spec.md §4.3, original_source's
// convert_to_retroarch_filename).
func ConvertToLocalFilename(serverFileName string, kind string, slot string) string {
	lower := strings.ToLower(serverFileName)
	if strings.HasSuffix(lower, constants.ExtStateAuto) {
		base := serverFileName[:len(serverFileName)-len(constants.ExtStateAuto)]
		return stripTimestamp(base) + constants.ExtStateAuto
	}

	ext := ""
	base := serverFileName
	if idx := strings.LastIndex(serverFileName, "."); idx >= 0 {
		ext = strings.ToLower(serverFileName[idx:])
		base = serverFileName[:idx]
	}
	base = stripTimestamp(base)

	if kind == "saves" {
		if ext == constants.ExtSRM || ext == constants.ExtSAV {
			return base + ext
		}
		return base + constants.ExtSRM
	}

	switch slot {
	case "auto":
		return base + constants.ExtStateAuto
	case constants.SlotQuick, "":
		return base + constants.ExtState
	default:
		n := strings.TrimPrefix(slot, "slot")
		return base + ".state" + n
	}
}

func uploadStem(localBaseName string) string {
	lower := strings.ToLower(localBaseName)
	if strings.HasSuffix(lower, constants.ExtStateAuto) {
		return stripTimestamp(localBaseName[:len(localBaseName)-len(constants.ExtStateAuto)])
	}
	if idx := strings.LastIndex(localBaseName, "."); idx >= 0 {
		return stripTimestamp(localBaseName[:idx])
	}
	return stripTimestamp(localBaseName)
}

func uploadExt(localBaseName string) string {
	lower := strings.ToLower(localBaseName)
	if strings.HasSuffix(lower, constants.ExtStateAuto) {
		return constants.ExtStateAuto
	}
	if idx := strings.LastIndex(localBaseName, "."); idx >= 0 {
		return localBaseName[idx:]
	}
	return ""
}

func stampName(stem, ext string, now time.Time) string {
	ts := now.Format("2006-01-02 15-04-05") + fmt.Sprintf("-%03d", now.Nanosecond()/1e6)
	return fmt.Sprintf("%s [%s]%s", stem, ts, ext)
}

// ConvertToUploadFilename produces the timestamp-stamped wire name for a
// local save/state file (spec.md §4.3, "Filename conversion (local ->
// upload)"). now is captured once by the caller so a state and its sibling
// screenshot share the exact same bracket.
func ConvertToUploadFilename(localBaseName string, now time.Time) string {
	return stampName(uploadStem(localBaseName), uploadExt(localBaseName), now)
}

// ScreenshotUploadName derives a screenshot's wire filename from the same
// stem as its state's upload name, sharing the exact timestamp bracket
// (spec.md §4.1, "Screenshot linking").
func ScreenshotUploadName(localBaseName string, now time.Time) string {
	return stampName(uploadStem(localBaseName), ".png", now)
}
