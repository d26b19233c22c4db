// Package retroarch is the emulator interface (C4): executable and save/state
// directory discovery across installation kinds, core mapping, save-folder
// naming detection, emulator-folder resolution, and UDP notifications to a
// running RetroArch instance.
package retroarch

import (
	"runtime"
	"strings"

	"go-romm-sync/constants"
)

// CoreMap gives the default (first-choice) libretro core for a ROM
// extension; GetCoresForExt returns the full ranked list. Used by the
// library service to recognize an already-downloaded ROM's loose file
// (library.Service.findRomPath).
var CoreMap = map[string]string{
	".nes": "nestopia_libretro",
	".fds": "nestopia_libretro",
	".sfc": "snes9x_libretro",
	".smc": "snes9x_libretro",
	".z64": "mupen64plus_next_libretro",
	".n64": "mupen64plus_next_libretro",
	".v64": "mupen64plus_next_libretro",
	".gb":  "gambatte_libretro",
	".gbc": "gambatte_libretro",
	".gba": "mgba_libretro",
	".nds": "melonds_libretro",
	".vb":  "beetle_vb_libretro",

	".md":  "genesis_plus_gx_libretro",
	".smd": "genesis_plus_gx_libretro",
	".gen": "genesis_plus_gx_libretro",
	".sms": "genesis_plus_gx_libretro",
	".gg":  "genesis_plus_gx_libretro",
	".32x": "picodrive_libretro",
	".msu": "genesis_plus_gx_libretro",
	".cue": "genesis_plus_gx_libretro",

	".iso": "pcsx_rearmed_libretro",
	".bin": "pcsx_rearmed_libretro",
	".chd": "pcsx_rearmed_libretro",
	".cso": "ppsspp_libretro",

	".a26": "stella_libretro",
	".a52": "a5200_libretro",
	".a78": "prosystem_libretro",
	".lnx": "handy_libretro",
	".jag": "virtualjaguar_libretro",

	".d64": "vice_x64sc_libretro",
	".prg": "vice_x64sc_libretro",
	".t64": "vice_x64sc_libretro",
	".adf": "puae_libretro",
	".uae": "puae_libretro",

	".pce": "mednafen_pce_fast_libretro",
	".sgx": "mednafen_pce_fast_libretro",
	".ws":  "mednafen_wswan_libretro",
	".wsc": "mednafen_wswan_libretro",
	".ngp": "mednafen_ngp_libretro",
	".ngc": "mednafen_ngp_libretro",

	".p8":  "retro8_libretro",
	".png": "retro8_libretro",
}

// coreAlternatives lists extra cores capable of playing a given extension,
// beyond CoreMap's default.
var coreAlternatives = map[string][]string{
	".gb":  {"mgba_libretro", "sameboy_libretro"},
	".gbc": {"mgba_libretro", "sameboy_libretro"},
	".gba": {"vba_next_libretro"},
	".sfc": {"bsnes_libretro"},
	".nes": {"fceumm_libretro"},
}

// GetCoresForExt returns the ranked core list for a ROM extension: the
// default first, then any known alternatives. Empty if the extension is
// unrecognized.
func GetCoresForExt(ext string) []string {
	def, ok := CoreMap[strings.ToLower(ext)]
	if !ok {
		return nil
	}
	cores := []string{def}
	for _, alt := range coreAlternatives[strings.ToLower(ext)] {
		if alt != def {
			cores = append(cores, alt)
		}
	}
	return cores
}

// getCoreExt returns the libretro core shared-library extension for the
// running OS, used by discovery.go's core-folder probing.
func getCoreExt() string {
	switch runtime.GOOS {
	case constants.OSWindows:
		return ".dll"
	case constants.OSDarwin:
		return ".dylib"
	default:
		return ".so"
	}
}
