package types

import "strings"

// Game is a ROM catalog entry as returned by the server's /api/roms endpoints.
//
// (PlatformSlug, FileName) is the local-disk identity; ID is the server
// identity (spec.md §3).
type Game struct {
	ID            uint           `json:"id"`
	Name          string         `json:"name"`
	FileName      string         `json:"fs_name"`
	PlatformName  string         `json:"platform_name"`
	PlatformSlug  string         `json:"platform_slug"`
	Multi         bool           `json:"multi"`
	FileSizeBytes int64          `json:"fs_size_bytes"`
	RommData      map[string]any `json:"romm_data,omitempty"`
	FullPath      string         `json:"full_path,omitempty"`

	// Local-only bookkeeping, populated by the catalog cache (C3) and the
	// collection sync loop (C6); never sent to the server.
	IsDownloaded bool   `json:"is_downloaded,omitempty"`
	LocalPath    string `json:"local_path,omitempty"`
	LocalSize    int64  `json:"local_size,omitempty"`
}

// FileNameNoExt returns FileName with its extension stripped, preferring the
// romm_data side-channel's precomputed value when present.
func (g Game) FileNameNoExt() string {
	if v, ok := g.RommData["fs_name_no_ext"].(string); ok && v != "" {
		return v
	}
	if idx := strings.LastIndex(g.FileName, "."); idx > 0 {
		return g.FileName[:idx]
	}
	return g.FileName
}

// FileItem represents a local save or state file discovered on disk.
type FileItem struct {
	Name      string `json:"name"`
	Core      string `json:"core"`
	UpdatedAt string `json:"updated_at"` // ISO8601 string
}
