// Package library manages the local on-disk copies of whole ROM files that
// back the collection sync loop (C6): downloading a missing ROM, checking
// whether one is already present, and deleting one that fell out of every
// tracked collection (spec.md §4.5).
package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"

	"go-romm-sync/retroarch"
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

// ProgressWriter reports download progress as a fraction of Total bytes.
type ProgressWriter struct {
	Total      int64
	Downloaded int64
	GameID     uint
	UI         UIProvider
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.Downloaded += int64(n)
	if pw.Total > 0 {
		percentage := float64(pw.Downloaded) / float64(pw.Total) * 100
		pw.UI.EventsEmit("download-progress", map[string]interface{}{
			"game_id":    pw.GameID,
			"percentage": percentage,
		})
	}
	return n, nil
}

// Service manages the local ROM library: the directory tree under
// libraryPath that holds one subdirectory per downloaded ROM.
type Service struct {
	client      *romm.Client
	libraryPath string
	ui          UIProvider
}

// New creates a library Service rooted at libraryPath.
func New(client *romm.Client, libraryPath string, ui UIProvider) *Service {
	return &Service{client: client, libraryPath: libraryPath, ui: ui}
}

// RomDir returns the local directory a ROM's file lives in: one directory
// per ROM ID, nested under its platform's sub-path, so same-named ROMs on
// different platforms never collide.
func (s *Service) RomDir(game types.Game) string {
	return filepath.Join(s.libraryPath, filepath.Dir(game.FullPath), fmt.Sprintf("%d", game.ID))
}

// DownloadRom fetches game's content into the library, reporting progress
// through onChunk (fraction 0..1, may be nil). It skips the transfer
// entirely if the ROM is already present on disk.
func (s *Service) DownloadRom(ctx context.Context, game types.Game, onChunk func(fraction float64)) error {
	if s.libraryPath == "" {
		return fmt.Errorf("library path is not configured")
	}
	if s.IsDownloaded(game) {
		return nil
	}

	destDir := s.RomDir(game)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	filename := filepath.Base(game.FullPath)
	destPath := filepath.Join(destDir, filename)
	staged := destPath + ".download"

	out, err := os.Create(staged)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	total := game.FileSizeBytes
	var w io.Writer = out
	if s.ui != nil {
		w = io.MultiWriter(out, &ProgressWriter{Total: total, GameID: game.ID, UI: s.ui})
	}

	err = s.client.DownloadROMContent(ctx, game.ID, game.FullPath, w, func(written int64) {
		if onChunk != nil && total > 0 {
			onChunk(float64(written) / float64(total))
		}
	})
	closeErr := out.Close()
	if err != nil {
		os.Remove(staged)
		return fmt.Errorf("failed to download rom %d: %w", game.ID, err)
	}
	if closeErr != nil {
		os.Remove(staged)
		return fmt.Errorf("failed to finalize rom %d download: %w", game.ID, closeErr)
	}

	if err := os.Rename(staged, destPath); err != nil {
		return fmt.Errorf("failed to move rom %d into place: %w", game.ID, err)
	}

	// Multi-disc/multi-file roms (game.Multi) are frequently served as a
	// single .7z or .rar bundle; extract it so RetroArch sees the .cue/.m3u
	// and sibling files directly rather than an archive it may not support.
	switch strings.ToLower(filepath.Ext(destPath)) {
	case ".7z":
		if err := extract7z(destPath, destDir); err != nil {
			return fmt.Errorf("failed to extract rom %d archive: %w", game.ID, err)
		}
		os.Remove(destPath)
	case ".rar":
		if err := extractRar(destPath, destDir); err != nil {
			return fmt.Errorf("failed to extract rom %d archive: %w", game.ID, err)
		}
		os.Remove(destPath)
	}
	return nil
}

func extract7z(archivePath, destDir string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f.Name, f.FileInfo().IsDir(), destDir, func() (io.ReadCloser, error) {
			return f.Open()
		}); err != nil {
			return err
		}
	}
	return nil
}

func extractRar(archivePath, destDir string) error {
	r, err := rardecode.OpenReader(archivePath, "")
	if err != nil {
		return fmt.Errorf("failed to open rar archive: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rar entry: %w", err)
		}
		if err := extractEntry(header.Name, header.IsDir, destDir, func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		}); err != nil {
			return err
		}
	}
}

func extractEntry(name string, isDir bool, destDir string, open func() (io.ReadCloser, error)) error {
	target := filepath.Join(destDir, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes destination directory", name)
	}
	if isDir {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", target, err)
	}
	rc, err := open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// IsDownloaded reports whether game already has a local file on disk.
func (s *Service) IsDownloaded(game types.Game) bool {
	if s.libraryPath == "" {
		return false
	}
	romDir := s.RomDir(game)
	info, err := os.Stat(romDir)
	if err != nil || !info.IsDir() {
		return false
	}
	return s.findRomPath(romDir) != ""
}

// LocalPath returns the path of game's downloaded file, or "" if absent.
func (s *Service) LocalPath(game types.Game) string {
	romDir := s.RomDir(game)
	return s.findRomPath(romDir)
}

func (s *Service) findRomPath(romDir string) string {
	files, err := os.ReadDir(romDir)
	if err != nil {
		return ""
	}

	var fallback string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".download") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := retroarch.CoreMap[ext]; ok || ext == ".zip" {
			return filepath.Join(romDir, name)
		}
		if fallback == "" {
			// Extracted multi-file roms (cue/m3u/bin sets) rarely match
			// CoreMap's single-file extensions; take the first loose file.
			fallback = filepath.Join(romDir, name)
		}
	}
	return fallback
}

// DeleteRom removes a downloaded ROM's directory from the library.
func (s *Service) DeleteRom(game types.Game) error {
	if s.libraryPath == "" {
		return fmt.Errorf("library path is not configured")
	}

	romDir := s.RomDir(game)
	if _, err := os.Stat(romDir); err == nil {
		if err := os.RemoveAll(romDir); err != nil {
			if s.ui != nil {
				s.ui.LogErrorf("DeleteRom: failed to remove %s: %v", romDir, err)
			}
			return fmt.Errorf("failed to delete rom directory: %w", err)
		}
		if s.ui != nil {
			s.ui.LogInfof("DeleteRom: deleted rom %d from library", game.ID)
		}
	}
	return nil
}
