// Package collections implements C6: the periodic loop that keeps a
// selected set of server-side collections mirrored to the local library,
// downloading newly added ROMs and optionally deleting ones that fall out
// of every tracked collection (spec.md §4.5).
package collections

import (
	"context"
	"os"
	"sync"
	"time"

	"go-romm-sync/catalog"
	"go-romm-sync/constants"
	"go-romm-sync/library"
	"go-romm-sync/romm"
	"go-romm-sync/types"
)

// UIProvider defines logging and event emission, mirrored locally per the
// project's convention for decoupling from any particular front end.
type UIProvider interface {
	LogInfof(format string, args ...interface{})
	LogErrorf(format string, args ...interface{})
	EventsEmit(eventName string, args ...interface{})
}

// EngineConfig bundles an Engine's fixed inputs.
type EngineConfig struct {
	Client       *romm.Client
	Library      *library.Service
	Cache        *catalog.Cache
	UI           UIProvider
	SyncInterval time.Duration
	AutoDownload bool
	AutoDelete   bool
}

// Engine is the collection sync loop of spec.md §4.5.
type Engine struct {
	client       *romm.Client
	library      *library.Service
	cache        *catalog.Cache
	ui           UIProvider
	syncInterval time.Duration
	autoDownload bool
	autoDelete   bool

	mu         sync.RWMutex
	selected   map[uint]string // collection ID -> name
	membership map[uint]map[uint]struct{}
	progress   map[string]types.DownloadProgress
	removals   map[string]types.RemovalEvent

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine constructs an Engine without starting it. cfg.SyncInterval
// defaults to constants.DefaultSyncIntervalSecs when zero.
func NewEngine(cfg EngineConfig) *Engine {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = constants.DefaultSyncIntervalSecs * time.Second
	}
	return &Engine{
		client:       cfg.Client,
		library:      cfg.Library,
		cache:        cfg.Cache,
		ui:           cfg.UI,
		syncInterval: interval,
		autoDownload: cfg.AutoDownload,
		autoDelete:   cfg.AutoDelete,
		selected:     make(map[uint]string),
		membership:   make(map[uint]map[uint]struct{}),
		progress:     make(map[string]types.DownloadProgress),
		removals:     make(map[string]types.RemovalEvent),
	}
}

// Start begins the periodic diff loop. SetSelected must be called first
// (or later, at runtime) to give the loop something to track.
func (e *Engine) Start() {
	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.loop()
}

// Stop signals the loop to exit and waits for it.
func (e *Engine) Stop() {
	if e.stopCh != nil {
		close(e.stopCh)
	}
	e.wg.Wait()
}

func (e *Engine) loop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.syncAll(context.Background())
		}
	}
}

// SetSelected replaces the tracked collection set. New collections are
// initialized in their own background goroutine (non-blocking, per
// spec.md §4.5 "Runtime reconfiguration"); removed ones simply drop their
// cache entry.
func (e *Engine) SetSelected(collections []types.Collection) {
	e.mu.Lock()
	fresh := make(map[uint]string, len(collections))
	var added []types.Collection
	for _, c := range collections {
		fresh[c.ID] = c.Name
		if _, ok := e.selected[c.ID]; !ok {
			added = append(added, c)
		}
	}
	for id := range e.selected {
		if _, ok := fresh[id]; !ok {
			delete(e.membership, id)
		}
	}
	e.selected = fresh
	e.mu.Unlock()

	for _, c := range added {
		go e.initializeCollection(context.Background(), c)
	}
}

// initializeCollection performs spec.md §4.5's "first-run catch-up": cache
// the membership set, then download every ROM in it that isn't local yet.
func (e *Engine) initializeCollection(ctx context.Context, c types.Collection) {
	games, err := e.client.FetchAllROMsInCollection(ctx, c.ID)
	if err != nil {
		e.ui.LogErrorf("initializeCollection: failed to fetch collection %q: %v", c.Name, err)
		return
	}

	ids := make(map[uint]struct{}, len(games))
	for _, g := range games {
		ids[g.ID] = struct{}{}
	}
	e.mu.Lock()
	e.membership[c.ID] = ids
	e.mu.Unlock()

	e.downloadMissing(ctx, c.Name, games)
}

// syncAll diffs every selected collection's membership against the last
// cached set and fires the added/removed handlers (spec.md §4.5 "Diff").
func (e *Engine) syncAll(ctx context.Context) {
	e.mu.RLock()
	selected := make(map[uint]string, len(e.selected))
	for id, name := range e.selected {
		selected[id] = name
	}
	e.mu.RUnlock()

	for id, name := range selected {
		e.syncOne(ctx, id, name)
	}
}

func (e *Engine) syncOne(ctx context.Context, collectionID uint, name string) {
	freshIDs, err := e.client.GetCollectionROMIDs(ctx, collectionID)
	if err != nil {
		e.ui.LogErrorf("syncOne: failed to fetch membership for %q: %v", name, err)
		return
	}

	e.mu.Lock()
	cached := e.membership[collectionID]
	e.mu.Unlock()

	var added, removed []uint
	for id := range freshIDs {
		if _, ok := cached[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range cached {
		if _, ok := freshIDs[id]; !ok {
			removed = append(removed, id)
		}
	}

	e.mu.Lock()
	e.membership[collectionID] = freshIDs
	e.mu.Unlock()

	if len(added) > 0 {
		e.handleAdded(ctx, collectionID, name, added)
	}
	if len(removed) > 0 {
		e.handleRemoved(collectionID, name, removed)
	}
}

// handleAdded implements spec.md §4.5's "Added-games handler".
func (e *Engine) handleAdded(ctx context.Context, collectionID uint, name string, addedIDs []uint) {
	if !e.autoDownload {
		e.ui.LogInfof("handleAdded: auto-download disabled, skipping %d new rom(s) in %q", len(addedIDs), name)
		return
	}

	games, err := e.client.FetchAllROMsInCollection(ctx, collectionID)
	if err != nil {
		e.ui.LogErrorf("handleAdded: failed to refetch collection %q: %v", name, err)
		return
	}

	added := make(map[uint]struct{}, len(addedIDs))
	for _, id := range addedIDs {
		added[id] = struct{}{}
	}
	var subset []types.Game
	for _, g := range games {
		if _, ok := added[g.ID]; ok {
			subset = append(subset, g)
		}
	}

	e.downloadMissing(ctx, name, subset)
}

// downloadMissing downloads every game in games not already present
// locally, tracking aggregate progress under collection name (spec.md
// §4.5's download_progress map).
func (e *Engine) downloadMissing(ctx context.Context, name string, games []types.Game) {
	var missing []types.Game
	existing := 0
	for _, g := range games {
		if e.library.IsDownloaded(g) {
			existing++
		} else {
			missing = append(missing, g)
		}
	}
	if len(missing) == 0 {
		return
	}

	total := len(games)
	e.setProgress(name, types.DownloadProgress{Downloaded: existing, Total: total})

	for i, g := range missing {
		base := existing + i
		e.setProgress(name, types.DownloadProgress{Downloaded: base + 1, Total: total, DownloadedPct: 0.01})

		start := time.Now()
		err := e.library.DownloadRom(ctx, g, func(fraction float64) {
			pct := float64(base+1) / float64(total) * 100 * fraction
			elapsed := time.Since(start).Seconds()
			var speed float64
			if elapsed > 0 {
				speed = float64(g.FileSizeBytes) * fraction / elapsed
			}
			e.setProgress(name, types.DownloadProgress{
				Downloaded:    base + 1,
				Total:         total,
				DownloadedPct: pct,
				SpeedBytesSec: speed,
			})
		})
		if err != nil {
			e.ui.LogErrorf("downloadMissing: failed to download rom %d for %q: %v", g.ID, name, err)
			continue
		}

		if e.cache != nil {
			local := e.library.LocalPath(g)
			var size int64
			if info, statErr := os.Stat(local); statErr == nil {
				size = info.Size()
			}
			e.cache.MarkLocal(g.ID, true, local, size)
		}
	}

	e.clearProgress(name)
	e.ui.EventsEmit(constants.EventCollectionSync, name)
}

// handleRemoved implements spec.md §4.5's "Removed-games handler": record
// the removal event, then (if auto-delete is on) unlink any local file for
// a ROM that isn't covered by some other tracked collection.
func (e *Engine) handleRemoved(collectionID uint, name string, removedIDs []uint) {
	now := time.Now().UTC().Format(time.RFC3339)
	e.setRemoval(name, types.RemovalEvent{RemovedCount: len(removedIDs), Timestamp: now})

	if !e.autoDelete || e.cache == nil {
		return
	}

	byID := make(map[uint]types.Game)
	for _, g := range e.cache.Games() {
		byID[g.ID] = g
	}

	deleted := 0
	for _, id := range removedIDs {
		if e.coveredByOtherCollection(collectionID, id) {
			continue
		}
		game, ok := byID[id]
		if !ok {
			continue
		}
		if err := e.library.DeleteRom(game); err != nil {
			e.ui.LogErrorf("handleRemoved: failed to delete rom %d: %v", id, err)
			continue
		}
		e.cache.MarkLocal(id, false, "", 0)
		deleted++
	}

	e.setRemoval(name, types.RemovalEvent{RemovedCount: len(removedIDs), DeletedCount: deleted, Timestamp: now})
}

func (e *Engine) coveredByOtherCollection(excludeCollectionID, romID uint) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, set := range e.membership {
		if id == excludeCollectionID {
			continue
		}
		if _, ok := set[romID]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) setProgress(name string, p types.DownloadProgress) {
	e.mu.Lock()
	e.progress[name] = p
	e.mu.Unlock()
}

func (e *Engine) clearProgress(name string) {
	e.mu.Lock()
	delete(e.progress, name)
	e.mu.Unlock()
}

func (e *Engine) setRemoval(name string, r types.RemovalEvent) {
	e.mu.Lock()
	e.removals[name] = r
	e.mu.Unlock()
}

// Progress returns a snapshot of in-flight download progress by collection
// name, for the status assembler (C7).
func (e *Engine) Progress() map[string]types.DownloadProgress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]types.DownloadProgress, len(e.progress))
	for k, v := range e.progress {
		out[k] = v
	}
	return out
}

// Removals returns a snapshot of pending removal events by collection name,
// for the status assembler (C7).
func (e *Engine) Removals() map[string]types.RemovalEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]types.RemovalEvent, len(e.removals))
	for k, v := range e.removals {
		out[k] = v
	}
	return out
}

// Membership returns a snapshot of the last-known ROM ID set for every
// tracked collection, for the status assembler (C7) to derive live
// downloaded/total counts without a network call.
func (e *Engine) Membership() map[uint]map[uint]struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uint]map[uint]struct{}, len(e.membership))
	for id, set := range e.membership {
		copied := make(map[uint]struct{}, len(set))
		for k := range set {
			copied[k] = struct{}{}
		}
		out[id] = copied
	}
	return out
}

// Selected returns the currently tracked collection IDs.
func (e *Engine) Selected() map[uint]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uint]string, len(e.selected))
	for k, v := range e.selected {
		out[k] = v
	}
	return out
}
