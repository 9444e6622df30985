package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPresetDir = "/usr/share/projectM/presets"
	PresetExt        = ".milk"
	maxScanDepth     = 3
	maxPresets       = 500
)

// Scan walks dir (up to three directories deep) and returns the preset files
// found, sorted case-insensitively by name and capped at 500 entries.
// Unreadable directories are skipped.
func Scan(dir string) []Item {
	if dir == "" {
		dir = DefaultPresetDir
	}
	var items []Item
	scanDir(dir, 0, &items)

	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	if len(items) > maxPresets {
		items = items[:maxPresets]
	}
	return items
}

func scanDir(dir string, depth int, items *[]Item) {
	if depth > maxScanDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			scanDir(path, depth+1, items)
			continue
		}
		if filepath.Ext(e.Name()) != PresetExt {
			continue
		}
		*items = append(*items, Item{
			Name: strings.TrimSuffix(e.Name(), PresetExt),
			Path: path,
		})
	}
}

// FirstPreset returns the alphabetically first preset under dir.
func FirstPreset(dir string) (string, bool) {
	items := Scan(dir)
	if len(items) == 0 {
		return "", false
	}
	return items[0].Path, true
}

type playlistFile struct {
	Name          string `yaml:"name"`
	Shuffle       bool   `yaml:"shuffle"`
	AutoCycle     bool   `yaml:"auto_cycle"`
	CycleDuration string `yaml:"cycle_duration"`
	Items         []Item `yaml:"items"`
}

// SaveFile writes the playlist as YAML.
func SaveFile(path string, p *Playlist) error {
	data, err := yaml.Marshal(playlistFile{
		Name:          p.Name,
		Shuffle:       p.Shuffle,
		AutoCycle:     p.AutoCycle,
		CycleDuration: p.CycleDuration.String(),
		Items:         p.Items,
	})
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write playlist %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a playlist written by SaveFile. The cursor starts at the
// first item.
func LoadFile(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playlist %s: %w", path, err)
	}
	var f playlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse playlist %s: %w", path, err)
	}

	p := New()
	if f.Name != "" {
		p.Name = f.Name
	}
	p.Shuffle = f.Shuffle
	p.AutoCycle = f.AutoCycle
	p.Items = f.Items
	if f.CycleDuration != "" {
		d, err := time.ParseDuration(f.CycleDuration)
		if err != nil {
			return nil, fmt.Errorf("parse playlist %s: cycle_duration: %w", path, err)
		}
		p.SetCycleDuration(d)
	}
	return p, nil
}
