package retroarch

import "strings"

// emulatorDirectoryMap gives the RetroArch save/state subdirectory name for
// a RomM "emulator" (core slug) value, for installations using the
// core-name folder scheme. Grounded on original_source's
// emulator_directory_map.
var emulatorDirectoryMap = map[string]string{
	"snes9x": "Snes9x", "bsnes": "bsnes", "mesen-s": "Mesen-S",
	"nestopia": "Nestopia", "fceumm": "FCEUmm", "mesen": "Mesen",
	"beetle_psx": "Beetle PSX", "beetle_psx_hw": "Beetle PSX HW",
	"pcsx_rearmed": "PCSX-ReARMed", "swanstation": "SwanStation",
	"mednafen_psx": "Beetle PSX", "mednafen_psx_hw": "Beetle PSX HW",
	"gambatte": "Gambatte", "sameboy": "SameBoy", "tgbdual": "TGB Dual",
	"mgba": "mGBA", "vba_next": "VBA Next", "vbam": "VBA-M",
	"genesis_plus_gx": "Genesis Plus GX", "blastem": "BlastEm", "picodrive": "PicoDrive",
	"mupen64plus_next": "Mupen64Plus-Next", "parallel_n64": "ParaLLEl N64",
	"beetle_saturn": "Beetle Saturn", "kronos": "Kronos", "mednafen_saturn": "Beetle Saturn",
	"mame": "MAME", "fbneo": "FBNeo", "fbalpha": "FB Alpha",
	"pcsx2": "PCSX2", "play": "Play!",
	"dolphin": "Dolphin",
	"flycast": "Flycast", "redream": "Redream",
	"stella": "Stella",
	"beetle_pce": "Beetle PCE", "beetle_pce_fast": "Beetle PCE Fast",
	"mednafen_pce": "Beetle PCE", "mednafen_pce_fast": "Beetle PCE Fast",
	"dosbox_pure": "DOSBox-Pure", "scummvm": "ScummVM", "ppsspp": "PPSSPP",
	"desmume": "DeSmuME", "melonds": "melonDS", "citra": "Citra",
}

// platformSlugFromEmulator reverse-maps a RomM core slug to its platform
// slug, for installations using the platform-slug folder scheme.
var platformSlugFromEmulator = map[string]string{
	"snes9x": "snes", "nestopia": "nes", "mgba": "gba", "sameboy": "gb",
	"beetle_psx_hw": "psx", "genesis_plus_gx": "genesis",
	"mupen64plus_next": "n64", "beetle_saturn": "saturn",
	"mame": "arcade", "stella": "atari2600",
}

// ResolveEmulatorFolder maps a server-side "emulator" value to the local
// save/state subdirectory name under an installation using save folder
// structure scheme (spec.md §4.4, "Emulator-folder resolution"). scheme is
// the result of DetectSaveFolderStructure ("core_names", "platform_slugs",
// or "unknown", treated as "core_names").
func ResolveEmulatorFolder(emulator, scheme string) string {
	if emulator == "" {
		return ""
	}
	if scheme == "platform_slugs" {
		if slug, ok := platformSlugFromEmulator[strings.ToLower(emulator)]; ok {
			return slug
		}
		return strings.ToLower(emulator)
	}
	return directoryNameForCore(emulator)
}

func directoryNameForCore(emulator string) string {
	if mapped, ok := emulatorDirectoryMap[strings.ToLower(emulator)]; ok {
		return mapped
	}

	name := emulator
	for _, pattern := range []struct{ from, to string }{
		{"beetle_", "Beetle "},
		{"mednafen_", "Beetle "},
		{"_libretro", ""},
		{"_", " "},
	} {
		name = strings.ReplaceAll(name, pattern.from, pattern.to)
	}
	return titleCase(name)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DolphinCardPath remaps RomM's "Card A"/"Card B" GameCube memory card
// emulator value to the nested path the dolphin-emu RetroArch core expects
// locally: dolphin-emu/User/GC/<region>/Card A (spec.md's supplemented
// Dolphin remap, from the teacher's prepareAssetPath). Defaults to the USA
// region; callers that know the game's actual region may join a different
// one instead.
func DolphinCardPath(card, region string) string {
	if region == "" {
		region = "USA"
	}
	return strings.Join([]string{"dolphin-emu", "User", "GC", region, card}, "/")
}
