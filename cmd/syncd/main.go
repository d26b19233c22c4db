// Command syncd is the headless daemon that keeps a local RetroArch
// installation synchronized with a RomM-style catalog server: it runs the
// auto-sync engine (C5), the collection sync loop (C6), and prints status
// snapshots (C7) on demand. The GUI front end, credential-storage backend,
// and discovery wizard spec.md puts out of scope are not implemented here;
// this binary assumes a populated settings.ini.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go-romm-sync/catalog"
	"go-romm-sync/collections"
	"go-romm-sync/config"
	"go-romm-sync/library"
	"go-romm-sync/lock"
	"go-romm-sync/retroarch"
	"go-romm-sync/romm"
	"go-romm-sync/status"
	"go-romm-sync/sync"
	"go-romm-sync/types"
)

var logger zerolog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "go-romm-sync daemon",
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", defaultConfigDir(), "Directory holding settings.ini and the catalog cache")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON instead of console-formatted text")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd, statusCmd, lockStatusCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	asJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if asJSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "go-romm-sync")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the auto-sync engine and collection sync loop in the foreground",
	RunE:  runDaemon,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a point-in-time status snapshot as JSON",
	RunE:  runStatus,
}

var lockStatusCmd = &cobra.Command{
	Use:   "lock-status",
	Short: "Report whether another syncd instance currently holds the auto-sync lock",
	RunE:  runLockStatus,
}

func configDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// buildClient loads settings and returns an authenticated catalog client,
// or an error describing why authentication could not be completed.
func buildClient(store *config.Store) (*romm.Client, error) {
	settings := store.Get()
	client := romm.NewClient(settings.RomM.Host, logger)
	if err := client.Authenticate(settings.RomM.Username, settings.RomM.Password); err != nil {
		return nil, fmt.Errorf("failed to authenticate with %s: %w", settings.RomM.Host, err)
	}
	return client, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configDir := configDirFlag(cmd)
	store := config.New(configDir)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings := store.Get()

	if settings.Device.DeviceID == "" {
		id := uuid.NewString()
		if err := store.Update(func(s *types.Settings) { s.Device.DeviceID = id }); err != nil {
			return fmt.Errorf("failed to persist generated device id: %w", err)
		}
		settings = store.Get()
	}

	client, err := buildClient(store)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	if _, err := client.RegisterDevice(context.Background(), types.Device{
		Name:          hostname,
		Platform:      runtimePlatform(),
		Client:        "go-romm-sync",
		ClientVersion: "dev",
		Hostname:      hostname,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to register device, continuing without it")
	}

	cache, err := catalog.New(configDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog cache: %w", err)
	}
	games, err := client.FetchAllROMs(context.Background(), nil, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to refresh catalog from server, using cached copy")
	} else {
		cache.Update(games)
	}

	savesDir, statesDir, err := retroarch.FindDirs(settings.System.RetroArchPath)
	if err != nil {
		return fmt.Errorf("failed to locate RetroArch save/state directories: %w", err)
	}
	playlistDir := filepath.Join(filepath.Dir(savesDir), "playlists")

	ui := cliUI{log: logger}

	lib := library.New(client, settings.Download.LibraryPath, ui)

	syncEngine, err := sync.NewEngine(sync.EngineConfig{
		Client:           client,
		Cache:            cache,
		LockDir:          configDir,
		InstanceLabel:    fmt.Sprintf("syncd_%d", os.Getpid()),
		UI:               ui,
		SavesDir:         savesDir,
		StatesDir:        statesDir,
		RetroArchExeName: settings.System.RetroArchExecutable,
		DeviceID:         settings.Device.DeviceID,
		OverwritePolicy:  settings.AutoSync.OverwriteBehavior,
		PlaylistDir:      playlistDir,
	})
	if err != nil {
		return fmt.Errorf("failed to construct auto-sync engine: %w", err)
	}
	if err := syncEngine.Start(); err != nil {
		return fmt.Errorf("failed to start auto-sync engine: %w", err)
	}
	defer syncEngine.Stop()

	collEngine := collections.NewEngine(collections.EngineConfig{
		Client:       client,
		Library:      lib,
		Cache:        cache,
		UI:           ui,
		SyncInterval: time.Duration(settings.Collections.SyncInterval) * time.Second,
		AutoDownload: settings.Collections.AutoDownload,
		AutoDelete:   settings.Collections.AutoDelete,
	})
	if len(settings.Collections.Selected) > 0 {
		known, err := client.GetCollections(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("failed to fetch collections at startup")
		} else {
			selected := make([]types.Collection, 0, len(settings.Collections.Selected))
			wanted := make(map[uint]bool, len(settings.Collections.Selected))
			for _, id := range settings.Collections.Selected {
				wanted[id] = true
			}
			for _, c := range known {
				if wanted[c.ID] {
					selected = append(selected, c)
				}
			}
			collEngine.SetSelected(selected)
		}
	}
	collEngine.Start()
	defer collEngine.Stop()

	logger.Info().Str("saves_dir", savesDir).Str("states_dir", statesDir).Msg("syncd running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	configDir := configDirFlag(cmd)
	store := config.New(configDir)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings := store.Get()

	client, err := buildClient(store)
	if err != nil {
		return err
	}

	cache, err := catalog.New(configDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog cache: %w", err)
	}

	view := status.View{
		Connected:       client.Authenticated(),
		AutoSyncEnabled: settings.AutoSync.Enabled,
		Games:           cache.Games(),
	}

	snap, err := status.Assemble(context.Background(), view, client)
	if err != nil {
		return fmt.Errorf("failed to assemble status: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runLockStatus(cmd *cobra.Command, args []string) error {
	configDir := configDirFlag(cmd)
	inst, err := lock.New(configDir, "lock-status-probe")
	if err != nil {
		return fmt.Errorf("failed to prepare lock: %w", err)
	}
	acquired, err := inst.Acquire()
	if err != nil {
		return fmt.Errorf("failed to probe lock: %w", err)
	}
	if acquired {
		inst.Release()
		fmt.Println("unlocked")
		return nil
	}
	fmt.Println("locked")
	return nil
}

func runtimePlatform() string {
	return runtime.GOOS
}
