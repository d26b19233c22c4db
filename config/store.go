package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"go-romm-sync/constants"
	"go-romm-sync/types"
)

// Store is the persisted key/value configuration described in spec.md §6.
// RomM.username and RomM.password are encrypted at rest; every other field
// is stored in the clear. All access is guarded by Mu so the sync engine's
// background workers and a future front-end can read concurrently with an
// occasional write (teacher's config.ConfigManager.Mu pattern).
type Store struct {
	Path string
	Mu   sync.RWMutex

	settings types.Settings
}

// New returns a Store rooted at the given config directory's settings.ini.
func New(configDir string) *Store {
	return &Store{Path: filepath.Join(configDir, "settings.ini")}
}

// Load reads settings.ini, creating it with defaults if absent.
func (s *Store) Load() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		s.settings = defaultSettings()
		return s.saveLocked()
	}

	f, err := ini.Load(s.Path)
	if err != nil {
		return fmt.Errorf("failed to parse settings.ini: %w", err)
	}

	var out types.Settings
	romm := f.Section("RomM")
	out.RomM.Host = romm.Key("host").String()

	encUser := romm.Key("username").String()
	if out.RomM.Username, err = decryptString(encUser); err != nil {
		out.RomM.Username = ""
	}
	encPass := romm.Key("password").String()
	if out.RomM.Password, err = decryptString(encPass); err != nil {
		out.RomM.Password = ""
	}

	out.Download.LibraryPath = f.Section("Download").Key("library_path").String()
	out.BIOS.FirmwareDir = f.Section("BIOS").Key("firmware_dir").String()

	autosync := f.Section("AutoSync")
	out.AutoSync.Enabled = autosync.Key("enabled").MustBool(true)
	out.AutoSync.OverwriteBehavior = autosync.Key("overwrite_behavior").MustString(constants.PolicySmart)

	sysSection := f.Section("System")
	out.System.RetroArchPath = sysSection.Key("retroarch_path").String()
	out.System.RetroArchExecutable = sysSection.Key("retroarch_executable").String()

	collections := f.Section("Collections")
	out.Collections.Selected = parseUintList(collections.Key("selected").String())
	out.Collections.SyncInterval = collections.Key("sync_interval").MustInt(constants.DefaultSyncIntervalSecs)
	out.Collections.AutoDownload = collections.Key("auto_download").MustBool(true)
	out.Collections.AutoDelete = collections.Key("auto_delete").MustBool(false)

	out.Device.DeviceID = f.Section("Device").Key("device_id").String()

	s.settings = out
	return nil
}

// Save persists the current settings to settings.ini via write-temp+rename.
func (s *Store) Save() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	f := ini.Empty()
	cfg := s.settings

	romm := f.Section("RomM")
	romm.Key("host").SetValue(cfg.RomM.Host)
	encUser, err := encryptString(cfg.RomM.Username)
	if err != nil {
		return fmt.Errorf("failed to encrypt username: %w", err)
	}
	encPass, err := encryptString(cfg.RomM.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	romm.Key("username").SetValue(encUser)
	romm.Key("password").SetValue(encPass)

	f.Section("Download").Key("library_path").SetValue(cfg.Download.LibraryPath)
	f.Section("BIOS").Key("firmware_dir").SetValue(cfg.BIOS.FirmwareDir)

	autosync := f.Section("AutoSync")
	autosync.Key("enabled").SetValue(strconv.FormatBool(cfg.AutoSync.Enabled))
	autosync.Key("overwrite_behavior").SetValue(cfg.AutoSync.OverwriteBehavior)

	sysSection := f.Section("System")
	sysSection.Key("retroarch_path").SetValue(cfg.System.RetroArchPath)
	sysSection.Key("retroarch_executable").SetValue(cfg.System.RetroArchExecutable)

	collections := f.Section("Collections")
	collections.Key("selected").SetValue(formatUintList(cfg.Collections.Selected))
	collections.Key("sync_interval").SetValue(strconv.Itoa(cfg.Collections.SyncInterval))
	collections.Key("auto_download").SetValue(strconv.FormatBool(cfg.Collections.AutoDownload))
	collections.Key("auto_delete").SetValue(strconv.FormatBool(cfg.Collections.AutoDelete))

	f.Section("Device").Key("device_id").SetValue(cfg.Device.DeviceID)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		return fmt.Errorf("failed to write settings.ini: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to finalize settings.ini: %w", err)
	}
	return nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() types.Settings {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.settings
}

// Update applies fn to the stored settings in place, under the write lock,
// and persists the result.
func (s *Store) Update(fn func(*types.Settings)) error {
	s.Mu.Lock()
	fn(&s.settings)
	err := s.saveLocked()
	s.Mu.Unlock()
	return err
}

func defaultSettings() types.Settings {
	var out types.Settings
	out.AutoSync.Enabled = true
	out.AutoSync.OverwriteBehavior = constants.PolicySmart
	out.Collections.SyncInterval = constants.DefaultSyncIntervalSecs
	out.Collections.AutoDownload = true
	return out
}

func parseUintList(s string) []uint {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if v, err := strconv.ParseUint(p, 10, 64); err == nil {
			out = append(out, uint(v))
		}
	}
	return out
}

func formatUintList(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
