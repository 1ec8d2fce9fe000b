package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each section.
var knownKeys = map[string][]string{
	"paths": {"strict_names", "trim_trailing_space", "normalize_unicode", "escape_long_paths", "max_path"},
	"transfers": {
		"chunk_size", "bandwidth_limit", "parallel",
		"preserve_timestamps", "no_buffering", "allow_cross_volume", "min_free_space",
	},
	"journal": {"enabled", "dir", "retention_days"},
	"logging": {"log_level"},
}

// knownSections is the sorted list of section names for Levenshtein
// matching. Sorted for deterministic suggestions on ties.
var knownSections = func() []string {
	names := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool)

	for _, key := range undecoded {
		err := buildKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// buildKeyError describes one undecoded key, suggesting the closest known
// section or key.
func buildKeyError(key toml.Key) error {
	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if len(key) == 1 {
			// A bare top-level key; it likely belongs in a section.
			if owner := sectionOf(section); owner != "" {
				return fmt.Errorf("config key %q must be inside the [%s] section", section, owner)
			}
		}

		if suggestion := closestMatch(section, knownSections); suggestion != "" {
			return fmt.Errorf("unknown config section %q: did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if len(key) < 2 {
		return nil
	}

	name := key[1]

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	if suggestion := closestMatch(name, sorted); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", name, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", strings.Join(key[1:], "."), section)
}

// sectionOf returns the section that defines key, if any.
func sectionOf(key string) string {
	for _, section := range knownSections {
		for _, k := range knownKeys[section] {
			if k == key {
				return section
			}
		}
	}

	return ""
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
