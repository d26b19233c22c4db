package constants

// OS Names
const (
	OSWindows = "windows"
	OSDarwin  = "darwin"
	OSLinux   = "linux"
)

// Architectures
const (
	ArchAmd64 = "amd64"
	ArchArm64 = "arm64"
	Arch386   = "386"
)

// Event Names
const (
	EventPlayStatus     = "play-status"
	EventGameStarted    = "game-started"
	EventGameExited     = "game-exited"
	EventCollectionSync = "collection-sync"
)

// Directory Categories
const (
	DirSaves  = "saves"
	DirStates = "states"
)

// Known Cores
const (
	CoreRetro8 = "retro8_libretro"
)

// Slot identifiers, see spec.md §3.
const (
	SlotAuto  = "auto"
	SlotQuick = "quicksave"
)

// Save/state file extensions, see spec.md §3.
const (
	ExtSRM       = ".srm"
	ExtSAV       = ".sav"
	ExtState     = ".state"
	ExtStateAuto = ".state.auto"
)

// Conflict resolution policies, configurable in AutoSync.overwrite_behavior (spec.md §6).
const (
	PolicyPreferLocal  = "Always prefer local"
	PolicyPreferServer = "Always download from server"
	PolicySmart        = "Smart (prefer newer)"
	PolicyAsk          = "Ask each time"
)

// Timing constants drawn from spec.md §4.4 and §8.
const (
	StartupGracePeriodSeconds = 5
	UploadDebounceSeconds     = 3
	RedundantTriggerSeconds   = 10
	OptimisticSuppressSeconds = 30
	AlreadySyncedWindowSecs   = 30
	SmartServerWinSeconds     = 10
	SmartLocalWinSeconds      = 60
	NetworkNoContentMaxRetry  = 3
	CatalogCountCacheSeconds  = 30
	CatalogCacheExpirySeconds = 86400
	DefaultSyncIntervalSecs   = 120
)

// RetroArch UDP command port, see spec.md §4.3 and §6.
const (
	RetroArchUDPHost = "127.0.0.1"
	RetroArchUDPPort = 55355
)
