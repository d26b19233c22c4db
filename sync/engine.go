// Package sync implements the auto-sync engine (C5): a lock-guarded,
// long-running component that watches local save/state directories, batches
// and uploads dirty files, monitors the emulator's run state over UDP, and
// reconciles server-side saves back down to disk.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"go-romm-sync/catalog"
	"go-romm-sync/constants"
	"go-romm-sync/lock"
	"go-romm-sync/retroarch"
	"go-romm-sync/romm"
)

// UIProvider defines logging and event emission, mirrored locally per the
// project's convention for decoupling from any particular front end.
type UIProvider interface {
	LogInfof(format string, args ...interface{})
	LogErrorf(format string, args ...interface{})
	EventsEmit(eventName string, args ...interface{})
}

type fingerprint struct {
	size  int64
	mtime time.Time
}

// Engine is the always-on auto-sync daemon of spec.md §4.4.
type Engine struct {
	client *romm.Client
	cache  *catalog.Cache
	lock   *lock.Instance
	ui     UIProvider

	savesDir, statesDir, retroArchExeName, deviceID string
	overwritePolicy                                 string
	saveFolderScheme, stateFolderScheme             string

	mu             sync.Mutex
	pending        map[string]time.Time
	lastDirty      map[string]time.Time
	fingerprints   map[string]fingerprint
	suppressUntil  map[string]time.Time
	lastSync       map[string]time.Time
	lastServerName map[string]string

	watcher   *fsnotify.Watcher
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup

	prevProcessRunning bool
	prevNetworkActive  bool
	noContentStreak    int

	playlistDir     string
	playlistMtimes  map[string]time.Time
}

// EngineConfig bundles an Engine's fixed inputs.
type EngineConfig struct {
	Client           *romm.Client
	Cache            *catalog.Cache
	LockDir          string
	InstanceLabel    string
	UI               UIProvider
	SavesDir         string
	StatesDir        string
	RetroArchExeName string
	DeviceID         string
	OverwritePolicy  string
	PlaylistDir      string
}

// NewEngine constructs an Engine without starting it.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	inst, err := lock.New(cfg.LockDir, cfg.InstanceLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare auto-sync lock: %w", err)
	}
	return &Engine{
		client:           cfg.Client,
		cache:            cfg.Cache,
		lock:             inst,
		ui:               cfg.UI,
		savesDir:         cfg.SavesDir,
		statesDir:        cfg.StatesDir,
		retroArchExeName: cfg.RetroArchExeName,
		deviceID:         cfg.DeviceID,
		overwritePolicy:  cfg.OverwritePolicy,
		playlistDir:      cfg.PlaylistDir,
		pending:          make(map[string]time.Time),
		lastDirty:        make(map[string]time.Time),
		fingerprints:     make(map[string]fingerprint),
		suppressUntil:    make(map[string]time.Time),
		lastSync:         make(map[string]time.Time),
		lastServerName:   make(map[string]string),
		playlistMtimes:   make(map[string]time.Time),
	}, nil
}

// Start acquires the single-instance lock, arms the filesystem watcher, and
// launches the upload worker and launch monitor loops. Per spec.md §4.4.1,
// a failed lock acquisition aborts before any other resource is touched.
func (e *Engine) Start() error {
	ok, err := e.lock.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire auto-sync lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance already holds the auto-sync lock")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.lock.Release()
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	e.watcher = watcher

	for _, root := range []string{e.savesDir, e.statesDir} {
		if root == "" {
			continue
		}
		if err := addRecursive(watcher, root); err != nil {
			e.ui.LogErrorf("Start: failed to watch %s: %v", root, err)
		}
	}

	e.saveFolderScheme = retroarch.DetectSaveFolderStructure(e.savesDir)
	e.stateFolderScheme = retroarch.DetectSaveFolderStructure(e.statesDir)

	e.startedAt = time.Now()
	e.stopCh = make(chan struct{})

	e.wg.Add(3)
	go e.watchLoop()
	go e.uploadWorkerLoop()
	go e.launchMonitorLoop()

	return nil
}

// Stop signals all loops to exit, waits for them, and releases the lock.
func (e *Engine) Stop() error {
	if e.stopCh != nil {
		close(e.stopCh)
	}
	e.wg.Wait()
	if e.watcher != nil {
		e.watcher.Close()
	}
	return e.lock.Release()
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (e *Engine) watchLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			e.handleFSEvent(event)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.ui.LogErrorf("watchLoop: watcher error: %v", err)
		}
	}
}

func (e *Engine) handleFSEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if !IsTrackedExtension(filepath.Base(event.Name)) {
		return
	}
	if time.Since(e.startedAt) < constants.StartupGracePeriodSeconds*time.Second {
		return
	}

	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.lastDirty[event.Name]; ok && now.Sub(last) < constants.RedundantTriggerSeconds*time.Second {
		return
	}
	e.lastDirty[event.Name] = now
	e.pending[event.Name] = now
}

func (e *Engine) uploadWorkerLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.processPendingUploads()
		}
	}
}

func (e *Engine) processPendingUploads() {
	now := time.Now()
	var batch []string

	e.mu.Lock()
	for path, dirtiedAt := range e.pending {
		if now.Sub(dirtiedAt) >= constants.UploadDebounceSeconds*time.Second {
			batch = append(batch, path)
			delete(e.pending, path)
		}
	}
	e.mu.Unlock()

	for _, path := range batch {
		e.uploadOne(path)
	}
}

func (e *Engine) uploadOne(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	e.mu.Lock()
	if suppressAt, ok := e.suppressUntil[path]; ok && time.Now().Before(suppressAt) {
		e.mu.Unlock()
		return
	}
	fp := fingerprint{size: info.Size(), mtime: info.ModTime()}
	if prev, ok := e.fingerprints[path]; ok && prev == fp {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	kind := romm.KindSave
	if strings.Contains(path, string(os.PathSeparator)+constants.DirStates+string(os.PathSeparator)) {
		kind = romm.KindState
	}

	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	romID, ok := e.MatchPath(baseName)
	if !ok {
		e.ui.LogErrorf("uploadOne: no ROM match for %s", path)
		return
	}

	slot, autocleanup, limit := SlotInfo(filepath.Base(path))
	content, err := os.ReadFile(path)
	if err != nil {
		e.ui.LogErrorf("uploadOne: failed to read %s: %v", path, err)
		return
	}

	now := time.Now()
	uploadName := ConvertToUploadFilename(filepath.Base(path), now)
	if kind == romm.KindSave {
		if prev, ok := e.serverFilenameFor(path); ok {
			uploadName = prev
		}
	}

	result, err := e.client.UploadAsset(context.Background(), kind, uploadName, content, romm.UploadAssetParams{
		RomID:            romID,
		DeviceID:         e.deviceID,
		Slot:             slot,
		Autocleanup:      autocleanup,
		AutocleanupLimit: limit,
	})

	switch {
	case err == nil && result.Outcome == romm.UploadOK:
		e.mu.Lock()
		e.fingerprints[path] = fp
		e.mu.Unlock()
		if kind == romm.KindSave {
			name := result.FileName
			if name == "" {
				name = uploadName
			}
			e.rememberServerFilename(path, name)
		}
		label := "Save uploaded"
		if kind == romm.KindState {
			label = "State uploaded"
			e.linkScreenshot(path, romID, result.ID, now)
		}
		if notifyErr := retroarch.SendNotification(label); notifyErr != nil {
			e.ui.LogErrorf("uploadOne: failed to send upload notification: %v", notifyErr)
		}
	case result.Outcome == romm.UploadConflict:
		retroarch.SendNotification("Sync conflict")
		e.ui.LogErrorf("uploadOne: server reports conflict for %s, not retrying", path)
	default:
		e.mu.Lock()
		delete(e.lastDirty, path)
		e.mu.Unlock()
		if err != nil {
			e.ui.LogErrorf("uploadOne: upload failed for %s: %v", path, err)
		}
	}
}

func (e *Engine) serverFilenameFor(path string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name, ok := e.lastServerName[path]
	return name, ok
}

func (e *Engine) rememberServerFilename(path, name string) {
	e.mu.Lock()
	e.lastServerName[path] = name
	e.mu.Unlock()
}

// linkScreenshot probes for a co-located .png beside a just-uploaded state
// and links it server-side, verifying the link and falling back to the
// explicit link endpoints on failure (spec.md §4.1, §4.4.3, states only).
func (e *Engine) linkScreenshot(statePath string, romID, stateID uint, now time.Time) {
	content, err := os.ReadFile(statePath + ".png")
	if err != nil {
		return
	}

	shotName := ScreenshotUploadName(filepath.Base(statePath), now)
	screenshotID, err := e.client.UploadScreenshot(context.Background(), romID, stateID, shotName, content)
	if err != nil {
		e.ui.LogErrorf("linkScreenshot: failed to upload screenshot for %s: %v", statePath, err)
		return
	}

	if ok, err := e.client.VerifyScreenshotLink(context.Background(), stateID, screenshotID); err == nil && ok {
		return
	}
	if err := e.client.LinkScreenshotExplicit(context.Background(), stateID, screenshotID); err != nil {
		e.ui.LogErrorf("linkScreenshot: failed to explicitly link screenshot for %s: %v", statePath, err)
	}
}

// MatchPath resolves a save/state base name to a ROM ID via the catalog
// cache's filename index (spec.md §4.4.5, file-to-ROM matching).
func (e *Engine) MatchPath(baseName string) (uint, bool) {
	candidates := make(map[string]uint)
	for _, g := range e.cache.Games() {
		candidates[g.FileNameNoExt()] = g.ID
	}
	return MatchFileToROM(baseName, candidates)
}

// SuppressUpload marks path as recently downloaded so the watcher's writes
// within the window don't trigger a redundant re-upload (spec.md §4.4.5
// step 7).
func (e *Engine) SuppressUpload(path string) {
	e.mu.Lock()
	e.suppressUntil[path] = time.Now().Add(constants.OptimisticSuppressSeconds * time.Second)
	e.mu.Unlock()
}

func (e *Engine) launchMonitorLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.pollLaunchState()
		}
	}
}

func (e *Engine) pollLaunchState() {
	e.checkPlaylists()

	running := e.retroArchExeName != "" && processRunningFn(e.retroArchExeName)

	if running && !e.prevProcessRunning {
		e.ui.LogInfof("pollLaunchState: RetroArch started")
	}
	if !running && e.prevProcessRunning {
		e.mu.Lock()
		e.pending = make(map[string]time.Time)
		e.mu.Unlock()
		e.ui.LogInfof("pollLaunchState: RetroArch exited, pending uploads cleared")
	}
	e.prevProcessRunning = running

	if !running {
		e.prevNetworkActive = false
		e.noContentStreak = 0
		return
	}

	status, err := getStatusFn()
	active := err == nil && NetworkContentLoaded(status)

	if active && !e.prevNetworkActive {
		e.noContentStreak = 0
		if last, ok := e.lastSync[status]; ok && time.Since(last) < constants.AlreadySyncedWindowSecs*time.Second {
			e.ui.LogInfof("pollLaunchState: %s already synced", status)
		} else {
			e.lastSync[status] = time.Now()
			e.syncForContent(status)
		}
	} else if !active {
		e.noContentStreak++
		if e.noContentStreak >= constants.NetworkNoContentMaxRetry {
			e.noContentStreak = constants.NetworkNoContentMaxRetry
		}
	}
	e.prevNetworkActive = active
}

// checkPlaylists catches library-initiated launches the UDP poll misses: a
// playlist's mtime changing means RetroArch (or its frontend) just recorded
// a new content-history entry (spec.md §4.4.4, "playlist files... to catch
// library-initiated launches missed by the network check").
func (e *Engine) checkPlaylists() {
	if e.playlistDir == "" {
		return
	}
	entries, err := os.ReadDir(e.playlistDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lpl") {
			continue
		}
		path := filepath.Join(e.playlistDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if prev, ok := e.playlistMtimes[path]; ok && !info.ModTime().After(prev) {
			continue
		}
		e.playlistMtimes[path] = info.ModTime()

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content, err := ParsePlaylistContentPath(data)
		if err != nil {
			continue
		}
		e.ui.LogInfof("checkPlaylists: library launch detected via %s -> %s", entry.Name(), content)
		e.syncForContent(content)
	}
}

// syncForContent resolves a detected content path (from the UDP status
// reply or a playlist entry) to a ROM ID and runs the download reconciler
// for it in the background so the 1 Hz poll loop never blocks on network
// I/O (spec.md §4.4.4, "pre-launch sync").
func (e *Engine) syncForContent(content string) {
	baseName := strings.TrimSuffix(filepath.Base(content), filepath.Ext(content))
	romID, ok := e.MatchPath(baseName)
	if !ok {
		e.ui.LogErrorf("syncForContent: no ROM match for %s", content)
		return
	}
	e.ui.EventsEmit(constants.EventPlayStatus, "pre-launch sync: "+content)
	go func() {
		if err := e.Reconcile(context.Background(), romID); err != nil {
			e.ui.LogErrorf("syncForContent: reconcile failed for rom %d: %v", romID, err)
		}
	}()
}

// processRunningFn and getStatusFn are indirections over ProcessRunning and
// GetStatus so tests can stub the emulator's runtime state.
var processRunningFn = ProcessRunning
var getStatusFn = retroarch.GetStatus
