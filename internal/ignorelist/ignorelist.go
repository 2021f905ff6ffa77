// Package ignorelist loads the set of technology names and category IDs
// excluded from a DetectResult's final assembly. Adapted from
// internal/ignore's gitignore-style file parsing, repurposed for a flat
// TOML exclude list in the style of pkg/secrets' allowlist loader.
package ignorelist

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// List holds the resolved exclusion sets, lower-cased for case-insensitive
// tech-name lookup.
type List struct {
	Techs      map[string]struct{}
	Categories map[uint32]struct{}
}

type fileFormat struct {
	Technologies []string `toml:"technologies"`
	Categories   []uint32 `toml:"categories"`
}

// Load reads path as a TOML ignore list. A missing file yields an empty,
// non-nil List rather than an error: an ignore list is optional.
func Load(path string) (*List, error) {
	list := &List{
		Techs:      make(map[string]struct{}),
		Categories: make(map[uint32]struct{}),
	}
	if path == "" {
		return list, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return list, nil
		}
		return nil, fmt.Errorf("stat ignore list: %w", err)
	}

	var parsed fileFormat
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, fmt.Errorf("decode ignore list %s: %w", path, err)
	}
	for _, name := range parsed.Technologies {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			list.Techs[name] = struct{}{}
		}
	}
	for _, id := range parsed.Categories {
		list.Categories[id] = struct{}{}
	}
	return list, nil
}

// Allows reports whether tech (and its category IDs) should survive into
// the final DetectResult.
func (l *List) Allows(tech string, categoryIDs []uint32) bool {
	if l == nil {
		return true
	}
	if _, blocked := l.Techs[strings.ToLower(tech)]; blocked {
		return false
	}
	for _, id := range categoryIDs {
		if _, blocked := l.Categories[id]; blocked {
			return false
		}
	}
	return true
}
