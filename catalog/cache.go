// Package catalog implements C3: an on-disk, write-through cache of the
// server's ROM catalog so the sync engine and collection loop can resolve
// filenames and platform names without a network round trip. Grounded on
// original_source's GameDataCache: write-temp-then-rename JSON persistence,
// 24h expiry, and a background save worker, now backed by an in-memory LRU
// for the hot filename lookup path (platform names use a plain map).
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"go-romm-sync/types"
)

const (
	cacheExpiry   = 24 * time.Hour
	filenameLRU   = 4096
	saveQueueSize = 8
)

// filenameEntry is what a filename resolves to: the display name, platform,
// ROM ID, and raw romm_data blob, mirroring filename_mapping's value shape.
type filenameEntry struct {
	Name     string         `json:"name"`
	Platform string         `json:"platform"`
	RomID    uint           `json:"rom_id"`
	RommData map[string]any `json:"romm_data"`
}

// onDiskCache is the exact shape persisted to games_data.json.
type onDiskCache struct {
	Timestamp float64      `json:"timestamp"`
	Count     int          `json:"count"`
	Games     []types.Game `json:"games"`
}

// Cache is the in-memory + on-disk catalog index. Safe for concurrent use.
type Cache struct {
	Log zerolog.Logger

	dir              string
	gamesFile        string
	platformMapFile  string
	filenameMapFile  string

	mu               sync.RWMutex
	games            []types.Game
	platformMapping  map[string]string
	filenameMapping  map[string]filenameEntry
	filenameIndex    *lru.Cache[string, filenameEntry]

	saveCh chan []types.Game
	once   sync.Once
}

// New creates a Cache rooted at dir (created if absent), loads any existing
// persisted state, and starts its background save worker.
func New(dir string, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	idx, err := lru.New[string, filenameEntry](filenameLRU)
	if err != nil {
		return nil, fmt.Errorf("failed to create filename index: %w", err)
	}

	c := &Cache{
		Log:             log,
		dir:             dir,
		gamesFile:       filepath.Join(dir, "games_data.json"),
		platformMapFile: filepath.Join(dir, "platform_mapping.json"),
		filenameMapFile: filepath.Join(dir, "filename_mapping.json"),
		platformMapping: loadPlatformMapping(filepath.Join(dir, "platform_mapping.json"), log),
		filenameMapping: loadFilenameMapping(filepath.Join(dir, "filename_mapping.json"), log),
		filenameIndex:   idx,
		saveCh:          make(chan []types.Game, saveQueueSize),
	}
	c.games = c.loadGames()
	c.rebuildFilenameLRU()
	c.startSaveWorker()
	return c, nil
}

func (c *Cache) startSaveWorker() {
	c.once.Do(func() {
		go func() {
			for games := range c.saveCh {
				if err := c.persist(games); err != nil {
					c.Log.Warn().Err(err).Msg("background catalog save failed")
				}
			}
		}()
	})
}

// Games returns a snapshot of the cached ROM list.
func (c *Cache) Games() []types.Game {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Game, len(c.games))
	copy(out, c.games)
	return out
}

// Update replaces the cached ROM list, queues a non-blocking background
// save, and rebuilds the filename/platform indexes synchronously so lookups
// are correct immediately (persistence itself may lag).
func (c *Cache) Update(games []types.Game) {
	c.mu.Lock()
	c.games = games
	c.updateMappingsLocked(games)
	c.rebuildFilenameLRULocked()
	c.mu.Unlock()

	select {
	case c.saveCh <- games:
	default:
		c.Log.Warn().Msg("catalog save queue full, dropping stale save request")
	}
}

// MarkLocal updates a single cached game's local-disk bookkeeping (set by
// the collection sync loop after a download or deletion) and queues a
// background save, without touching the rest of the catalog.
func (c *Cache) MarkLocal(romID uint, downloaded bool, localPath string, localSize int64) {
	c.mu.Lock()
	var snapshot []types.Game
	for i := range c.games {
		if c.games[i].ID == romID {
			c.games[i].IsDownloaded = downloaded
			c.games[i].LocalPath = localPath
			c.games[i].LocalSize = localSize
			break
		}
	}
	snapshot = make([]types.Game, len(c.games))
	copy(snapshot, c.games)
	c.mu.Unlock()

	select {
	case c.saveCh <- snapshot:
	default:
		c.Log.Warn().Msg("catalog save queue full, dropping stale save request")
	}
}

func (c *Cache) persist(games []types.Game) error {
	data := onDiskCache{
		Timestamp: float64(time.Now().Unix()),
		Count:     len(games),
		Games:     games,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode catalog cache: %w", err)
	}

	tmp := c.gamesFile + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog cache temp file: %w", err)
	}
	if err := os.Rename(tmp, c.gamesFile); err != nil {
		return fmt.Errorf("failed to rename catalog cache temp file: %w", err)
	}

	c.mu.RLock()
	platformMapping := c.platformMapping
	filenameMapping := c.filenameMapping
	c.mu.RUnlock()
	savePlatformMapping(c.platformMapFile, platformMapping, c.Log)
	saveFilenameMapping(c.filenameMapFile, filenameMapping, c.Log)
	return nil
}

func (c *Cache) loadGames() []types.Game {
	data, err := os.ReadFile(c.gamesFile)
	if err != nil {
		return nil
	}

	var cached onDiskCache
	if err := json.Unmarshal(data, &cached); err != nil {
		c.Log.Warn().Err(err).Msg("failed to parse catalog cache, ignoring")
		return nil
	}

	cachedAt := time.Unix(int64(cached.Timestamp), 0)
	if time.Since(cachedAt) > cacheExpiry {
		c.Log.Info().Msg("catalog cache expired, will refresh on next connection")
		return nil
	}

	for i := range cached.Games {
		if slug := cached.Games[i].PlatformSlug; slug != "" {
			cached.Games[i].PlatformName = c.PlatformName(slug)
		}
	}
	return cached.Games
}

// PlatformName resolves a platform slug to a display name, falling back to
// the slug itself if no mapping exists.
func (c *Cache) PlatformName(slug string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.platformMapping[slug]; ok {
		return name
	}
	return slug
}

// LookupFilename resolves a local filename (with or without extension) to
// its cached catalog entry, checking the LRU first.
func (c *Cache) LookupFilename(name string) (filenameEntry, bool) {
	if entry, ok := c.filenameIndex.Get(name); ok {
		return entry, true
	}
	c.mu.RLock()
	entry, ok := c.filenameMapping[name]
	c.mu.RUnlock()
	if ok {
		c.filenameIndex.Add(name, entry)
	}
	return entry, ok
}

func (c *Cache) rebuildFilenameLRU() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildFilenameLRULocked()
}

func (c *Cache) rebuildFilenameLRULocked() {
	c.filenameIndex.Purge()
}

// updateMappingsLocked rebuilds platform and filename mappings from games,
// per original_source's update_mappings. Caller must hold c.mu.
func (c *Cache) updateMappingsLocked(games []types.Game) {
	platformMapping := map[string]string{}
	filenameMapping := map[string]filenameEntry{}

	for _, g := range games {
		if g.RommData == nil {
			continue
		}

		platformName := stringField(g.RommData, "platform_name")
		if platformName == "" {
			platformName = stringField(g.RommData, "platform_slug")
		}
		if platformName == "" {
			platformName = g.PlatformName
		}
		if platformName == "" {
			platformName = "Unknown"
		}

		slug := stringField(g.RommData, "platform_slug")
		for _, dirName := range []string{platformName, spaceToUnderscore(platformName), spaceRemoved(platformName), slug} {
			if dirName != "" {
				platformMapping[dirName] = platformName
			}
		}

		fileName := stringField(g.RommData, "fs_name")
		if fileName == "" {
			fileName = g.FileName
		}
		fsNameNoExt := stringField(g.RommData, "fs_name_no_ext")
		gameName := g.Name
		if gameName == "" {
			gameName = stringField(g.RommData, "name")
		}

		entry := filenameEntry{Name: gameName, Platform: platformName, RomID: g.ID, RommData: g.RommData}
		if fileName != "" {
			filenameMapping[fileName] = entry
		}
		if fsNameNoExt != "" {
			filenameMapping[fsNameNoExt] = entry
			for _, ext := range []string{".zip", ".7z", ".bin", ".iso", ".chd"} {
				filenameMapping[fsNameNoExt+ext] = entry
			}
		}
	}

	c.platformMapping = mergePlatformMapping(platformMapping)
	c.filenameMapping = filenameMapping
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func spaceToUnderscore(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

func spaceRemoved(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != ' ' {
			out = append(out, r)
		}
	}
	return string(out)
}
