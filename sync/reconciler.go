package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go-romm-sync/constants"
	"go-romm-sync/retroarch"
	"go-romm-sync/romm"
	"go-romm-sync/types"
	"go-romm-sync/utils"
)

// Reconcile implements the download reconciler of spec.md §4.4.5 for a
// single ROM: it fetches the ROM's save/state records, picks the
// most-recent of each, and downloads whichever ones the conflict policy
// says should win over the local copy.
func (e *Engine) Reconcile(ctx context.Context, romID uint) error {
	details, err := e.client.GetRom(ctx, romID)
	if err != nil {
		return fmt.Errorf("Reconcile: failed to fetch rom %d: %w", romID, err)
	}

	if save, ok := mostRecent(details.UserSaves); ok {
		e.reconcileOne(ctx, details, save)
	}

	// The auto-save slot is processed separately so it never overwrites the
	// quick-save slot (spec.md §4.4.5 step 9).
	var autoState *types.ServerState
	var regular []types.ServerState
	for i := range details.UserStates {
		s := details.UserStates[i]
		if s.Slot == "auto" {
			st := s
			autoState = &st
			continue
		}
		regular = append(regular, s)
	}
	if state, ok := mostRecentStates(regular); ok {
		e.reconcileState(ctx, details, state)
	}
	if autoState != nil {
		e.reconcileState(ctx, details, *autoState)
	}
	return nil
}

// resolveFolder routes Dolphin's GameCube memory-card slots through their
// nested dolphin-emu path instead of the generic core-name table.
func (e *Engine) resolveFolder(emulator, scheme string) string {
	switch emulator {
	case "Card A", "Card B":
		return retroarch.DolphinCardPath(emulator, "")
	default:
		return retroarch.ResolveEmulatorFolder(emulator, scheme)
	}
}

func mostRecent(saves []types.ServerSave) (types.ServerSave, bool) {
	if len(saves) == 0 {
		return types.ServerSave{}, false
	}
	sort.Slice(saves, func(i, j int) bool {
		ti, _ := utils.ParseTimestamp(saves[i].UpdatedAt)
		tj, _ := utils.ParseTimestamp(saves[j].UpdatedAt)
		return ti.After(tj)
	})
	return saves[0], true
}

func mostRecentStates(states []types.ServerState) (types.ServerState, bool) {
	if len(states) == 0 {
		return types.ServerState{}, false
	}
	sort.Slice(states, func(i, j int) bool {
		ti, _ := utils.ParseTimestamp(states[i].UpdatedAt)
		tj, _ := utils.ParseTimestamp(states[j].UpdatedAt)
		return ti.After(tj)
	})
	return states[0], true
}

// reconcileOne handles a save record (states go through reconcileState,
// which additionally downloads the state's linked screenshot).
func (e *Engine) reconcileOne(ctx context.Context, details types.RomDetails, save types.ServerSave) {
	if save.ID == 0 {
		return
	}
	localName := ConvertToLocalFilename(save.FileName, string(romm.KindSave), save.Slot)
	targetPath := filepath.Join(e.savesDir, e.resolveFolder(save.Emulator, e.saveFolderScheme), localName)

	if e.optimisticSkip(ctx, romm.KindSave, details.ID, save.ID, save.DeviceSyncs) {
		return
	}

	decision := e.decide(targetPath, save.UpdatedAt)
	switch decision {
	case DecisionAsk:
		e.ui.EventsEmit(constants.EventPlayStatus, "conflict: "+targetPath)
		return
	case DecisionKeepLocal, DecisionSkip:
		return
	}

	if err := e.downloadAsset(ctx, romm.KindSave, save.ID, save.DownloadPath, save.FileName, targetPath); err != nil {
		e.ui.LogErrorf("Reconcile: failed to download save %d: %v", save.ID, err)
		return
	}
	// Remember the server's own name so a later re-upload of this same local
	// file reuses it instead of minting a fresh timestamp bracket (spec.md
	// §4.1, "the previous server filename is reused when present").
	e.rememberServerFilename(targetPath, save.FileName)
}

func (e *Engine) reconcileState(ctx context.Context, details types.RomDetails, state types.ServerState) {
	if state.ID == 0 {
		return
	}
	localName := ConvertToLocalFilename(state.FileName, string(romm.KindState), state.Slot)
	targetPath := filepath.Join(e.statesDir, e.resolveFolder(state.Emulator, e.stateFolderScheme), localName)

	if e.optimisticSkip(ctx, romm.KindState, details.ID, state.ID, state.DeviceSyncs) {
		return
	}

	decision := e.decide(targetPath, state.UpdatedAt)
	switch decision {
	case DecisionAsk:
		e.ui.EventsEmit(constants.EventPlayStatus, "conflict: "+targetPath)
		return
	case DecisionKeepLocal, DecisionSkip:
		return
	}

	if err := e.downloadAsset(ctx, romm.KindState, state.ID, state.DownloadPath, state.FileName, targetPath); err != nil {
		e.ui.LogErrorf("Reconcile: failed to download state %d: %v", state.ID, err)
		return
	}

	if state.Screenshot != nil {
		e.downloadScreenshot(ctx, *state.Screenshot, targetPath+".png")
	}
}

// optimisticSkip implements spec.md §4.4.5 step 4: if our device already
// reported this exact revision current, there's nothing to download.
func (e *Engine) optimisticSkip(ctx context.Context, kind romm.AssetKind, romID, recordID uint, syncs []types.DeviceSync) bool {
	if e.deviceID == "" {
		return false
	}
	for _, s := range syncs {
		if s.DeviceID == e.deviceID && s.IsCurrent {
			return true
		}
	}
	ids, err := e.client.GetSavesByDevice(ctx, kind, e.deviceID, romID)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == recordID {
			return true
		}
	}
	return false
}

func (e *Engine) decide(targetPath, serverUpdatedAt string) ConflictDecision {
	info, err := os.Stat(targetPath)
	if err != nil {
		return DecisionDownloadFromServer
	}
	serverTime, err := utils.ParseTimestamp(serverUpdatedAt)
	if err != nil {
		return DecisionSkip
	}
	return DecideConflict(e.overwritePolicy, info.ModTime().UTC(), serverTime.UTC())
}

// downloadAsset performs spec.md §4.4.5 steps 6-7: backup-rename, download
// to the server-side name, atomic rename to the target, then suppress the
// watcher's re-upload for the debounce window.
func (e *Engine) downloadAsset(ctx context.Context, kind romm.AssetKind, id uint, fallbackURL, serverFileName, targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to prepare target directory: %w", err)
	}

	var buf bytes.Buffer
	outcome, err := e.client.DownloadAssetContent(ctx, kind, id, e.deviceID, fallbackURL, &buf, nil)
	if err != nil || outcome != romm.DownloadOK {
		if err == nil {
			err = fmt.Errorf("download outcome %v", outcome)
		}
		return err
	}

	if _, statErr := os.Stat(targetPath); statErr == nil {
		backup := targetPath + ".backup"
		os.Remove(backup)
		if err := os.Rename(targetPath, backup); err != nil {
			return fmt.Errorf("failed to back up existing file: %w", err)
		}
	}

	staged := filepath.Join(dir, filepath.Base(serverFileName))
	if err := os.WriteFile(staged, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write downloaded content: %w", err)
	}
	if err := os.Rename(staged, targetPath); err != nil {
		return fmt.Errorf("failed to move downloaded content into place: %w", err)
	}

	e.SuppressUpload(targetPath)
	return nil
}

func (e *Engine) downloadScreenshot(ctx context.Context, shot types.Screenshot, targetPath string) {
	var buf bytes.Buffer
	outcome, err := e.client.DownloadAssetContent(ctx, "screenshots", shot.ID, "", shot.DownloadPath, &buf, nil)
	if err != nil || outcome != romm.DownloadOK {
		return
	}
	_ = os.WriteFile(targetPath, buf.Bytes(), 0o644)
}
