package catalog

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"go-romm-sync/types"
)

// mergePlatformMapping combines a freshly observed mapping with the
// hardcoded fallback table: the fallback always wins unless the observed
// entry is strictly more informative (a real name, not just a slug echoed
// back, and longer than the slug it replaces). Grounded on
// original_source.load_platform_mapping's merge rule; this function is
// idempotent — merging a mapping's own output against itself changes
// nothing, which is exercised directly in platform_mapping_test.go.
func mergePlatformMapping(observed map[string]string) map[string]string {
	merged := make(map[string]string, len(fallbackPlatformMapping)+len(observed))
	for slug, name := range fallbackPlatformMapping {
		merged[slug] = name
	}
	for slug, name := range observed {
		if _, isFallback := fallbackPlatformMapping[slug]; !isFallback || (name != slug && len(name) > len(slug)) {
			merged[slug] = name
		}
	}
	return merged
}

// BuildPlatformMappingFromAPI builds a slug->name mapping straight from the
// server's platform list, for merging ahead of any ROM having been cached
// yet (original_source.build_platform_mapping_from_api).
func BuildPlatformMappingFromAPI(platforms []types.Platform) map[string]string {
	out := make(map[string]string, len(platforms)*2)
	for _, p := range platforms {
		if p.Name == "" || p.Slug == "" {
			continue
		}
		out[p.Slug] = p.Name
		out[p.Name] = p.Name
		out[spaceToUnderscore(p.Name)] = p.Name
		out[spaceRemoved(p.Name)] = p.Name
	}
	return out
}

func loadPlatformMapping(path string, log zerolog.Logger) map[string]string {
	merged := make(map[string]string, len(fallbackPlatformMapping))
	for slug, name := range fallbackPlatformMapping {
		merged[slug] = name
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return merged
	}
	var cached map[string]string
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Warn().Err(err).Msg("failed to parse cached platform mapping")
		return merged
	}
	for slug, name := range cached {
		if _, isFallback := fallbackPlatformMapping[slug]; !isFallback || (name != slug && len(name) > len(slug)) {
			merged[slug] = name
		}
	}
	return merged
}

func savePlatformMapping(path string, mapping map[string]string, log zerolog.Logger) {
	payload, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode platform mapping")
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Warn().Err(err).Msg("failed to save platform mapping")
	}
}

func loadFilenameMapping(path string, log zerolog.Logger) map[string]filenameEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]filenameEntry{}
	}
	var cached map[string]filenameEntry
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Warn().Err(err).Msg("failed to parse cached filename mapping")
		return map[string]filenameEntry{}
	}
	return cached
}

func saveFilenameMapping(path string, mapping map[string]filenameEntry, log zerolog.Logger) {
	payload, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode filename mapping")
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Warn().Err(err).Msg("failed to save filename mapping")
	}
}
