package types

// DeviceSync is a per-device flag on a save/state record indicating whether
// that device already holds the current revision (spec.md §3, "optimistic
// sync").
type DeviceSync struct {
	DeviceID  string `json:"device_id"`
	IsCurrent bool   `json:"is_current"`
}

// Screenshot is a state's linked screenshot, if any.
type Screenshot struct {
	ID           uint   `json:"id"`
	DownloadPath string `json:"download_path"`
}

// ServerSave is a battery-save record on the RomM server.
type ServerSave struct {
	ID            uint         `json:"id"`
	FileName      string       `json:"file_name"`
	DownloadPath  string       `json:"download_path"`
	Emulator      string       `json:"emulator"`
	Slot          string       `json:"slot"`
	UpdatedAt     string       `json:"updated_at"`
	CreatedAt     string       `json:"created_at"`
	FileSizeBytes int64        `json:"file_size_bytes"`
	DeviceSyncs   []DeviceSync `json:"device_syncs,omitempty"`
}

// ServerState is a save-state record on the RomM server.
type ServerState struct {
	ID            uint         `json:"id"`
	FileName      string       `json:"file_name"`
	DownloadPath  string       `json:"download_path"`
	Emulator      string       `json:"emulator"`
	Slot          string       `json:"slot"`
	UpdatedAt     string       `json:"updated_at"`
	CreatedAt     string       `json:"created_at"`
	FileSizeBytes int64        `json:"file_size_bytes"`
	Screenshot    *Screenshot  `json:"screenshot,omitempty"`
	DeviceSyncs   []DeviceSync `json:"device_syncs,omitempty"`
}

// RomDetails is the response of GET /api/roms/{id}, carrying the user's save
// and state records alongside the ROM's catalog fields.
type RomDetails struct {
	Game
	UserSaves  []ServerSave  `json:"user_saves"`
	UserStates []ServerState `json:"user_states"`
}
