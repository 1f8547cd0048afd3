package dynet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Light styles understood by discovery.
const (
	StyleDimmable = "dimmable"
	StyleOnOff    = "onoff"

	defaultIcon = "mdi:lightbulb"
)

// Map is the Dynalite map document: which areas and channels exist and how
// their presets line up with brightness levels.
//
// Presets and levels are index-aligned: Presets[i] corresponds to Levels[i].
// A nil list is "not configured" and falls back to the enclosing scope; an
// explicitly empty list does not.
type Map struct {
	Defaults Defaults           `yaml:"defaults"`
	Areas    map[int]AreaConfig `yaml:"areas"`
}

// Defaults holds the lists used when neither channel nor area configures one.
type Defaults struct {
	Presets    []int  `yaml:"presets"`
	Levels     []int  `yaml:"levels"`
	LightStyle string `yaml:"light_style"`
}

// AreaConfig describes one Dynalite area.
type AreaConfig struct {
	Name     string                   `yaml:"name"`
	Presets  []int                    `yaml:"presets,omitempty"`
	Levels   []int                    `yaml:"levels,omitempty"`
	Channels map[string]ChannelConfig `yaml:"channels"`
}

// ChannelConfig describes one channel of an area. The key "all" is the area
// master channel.
type ChannelConfig struct {
	Name    string `yaml:"name"`
	Presets []int  `yaml:"presets,omitempty"`
	Levels  []int  `yaml:"levels,omitempty"`
	Style   string `yaml:"style,omitempty"`
	Icon    string `yaml:"icon,omitempty"`
}

// ParseMap decodes and validates a map document.
func ParseMap(data []byte) (*Map, error) {
	m := &Map{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %w", ErrInvalidMap, err)
	}
	if m.Areas == nil {
		m.Areas = make(map[int]AreaConfig)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMap reads and validates the map document at path.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file: %w", err)
	}
	return ParseMap(data)
}

// Validate checks channel keys, list alignment and level ranges.
func (m *Map) Validate() error {
	var errs []string

	if m.Defaults.LightStyle != "" && !validStyle(m.Defaults.LightStyle) {
		errs = append(errs, fmt.Sprintf("defaults.light_style %q is invalid", m.Defaults.LightStyle))
	}
	errs = append(errs, checkLevels("defaults.levels", m.Defaults.Levels)...)

	for _, area := range m.AreaIDs() {
		cfg := m.Areas[area]
		if area < 0 || area > maxV2Area {
			errs = append(errs, fmt.Sprintf("areas.%d is outside 0..%d", area, maxV2Area))
		}
		errs = append(errs, checkLevels(fmt.Sprintf("areas.%d.levels", area), cfg.Levels)...)

		for key, ch := range cfg.Channels {
			path := fmt.Sprintf("areas.%d.channels.%s", area, key)
			id, err := ParseChannelID(key)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: key must be a positive integer or \"all\"", path))
				continue
			}
			if id.String() != key {
				errs = append(errs, fmt.Sprintf("%s: key must be written as %q", path, id.String()))
				continue
			}
			if ch.Style != "" && !validStyle(ch.Style) {
				errs = append(errs, fmt.Sprintf("%s.style %q is invalid", path, ch.Style))
			}
			errs = append(errs, checkLevels(path+".levels", ch.Levels)...)

			presets, levels := m.Effective(area, id)
			if len(presets) != len(levels) {
				errs = append(errs, fmt.Sprintf("%s: %d presets but %d levels", path, len(presets), len(levels)))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrInvalidMap, strings.Join(errs, "; "))
	}
	return nil
}

// AreaIDs returns the configured area numbers in ascending order.
func (m *Map) AreaIDs() []int {
	ids := make([]int, 0, len(m.Areas))
	for id := range m.Areas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Channel returns the configuration of a channel.
func (m *Map) Channel(area int, ch ChannelID) (ChannelConfig, error) {
	cfg, ok := m.Areas[area]
	if !ok {
		return ChannelConfig{}, fmt.Errorf("%w: %d", ErrAreaNotConfigured, area)
	}
	c, ok := cfg.Channels[ch.String()]
	if !ok {
		return ChannelConfig{}, fmt.Errorf("%w: area %d channel %s", ErrChannelNotMapped, area, ch)
	}
	return c, nil
}

// ChannelIDs returns the configured channels of an area: numbered channels
// in ascending order, followed by ChannelAll if present. Keys that do not
// parse are skipped.
func (m *Map) ChannelIDs(area int) []ChannelID {
	cfg, ok := m.Areas[area]
	if !ok {
		return nil
	}
	ids := make([]ChannelID, 0, len(cfg.Channels))
	hasAll := false
	for key := range cfg.Channels {
		id, err := ParseChannelID(key)
		if err != nil {
			continue
		}
		if id.IsAll() {
			hasAll = true
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if hasAll {
		ids = append(ids, ChannelAll)
	}
	return ids
}

// Style returns the effective light style of a channel.
func (m *Map) Style(c ChannelConfig) string {
	switch {
	case c.Style != "":
		return c.Style
	case m.Defaults.LightStyle != "":
		return m.Defaults.LightStyle
	default:
		return StyleDimmable
	}
}

// IconOrDefault returns the channel icon, or the default bulb icon.
func (c ChannelConfig) IconOrDefault() string {
	if c.Icon != "" {
		return c.Icon
	}
	return defaultIcon
}

func validStyle(s string) bool {
	return s == StyleDimmable || s == StyleOnOff
}

func checkLevels(path string, levels []int) []string {
	var errs []string
	for i, lv := range levels {
		if lv < 0 || lv > 255 {
			errs = append(errs, fmt.Sprintf("%s[%d] = %d is outside 0..255", path, i, lv))
		}
	}
	return errs
}

// MapStore holds the current map and swaps it atomically on reload.
// A failed reload keeps the previous map.
//
// Thread Safety: All methods are safe for concurrent use.
type MapStore struct {
	path string

	mu      sync.RWMutex
	current *Map
	raw     []byte

	listenersMu sync.Mutex
	listeners   []func(*Map)

	logger Logger
}

// NewMapStore loads the map at path.
func NewMapStore(path string, logger Logger) (*MapStore, error) {
	s := &MapStore{path: path, logger: logger}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file: %w", err)
	}
	m, err := ParseMap(data)
	if err != nil {
		return nil, err
	}
	s.current, s.raw = m, data
	return s, nil
}

// NewStaticMapStore wraps an already parsed map. Reload and Replace fail
// because there is no backing file.
func NewStaticMapStore(m *Map) *MapStore {
	return &MapStore{current: m}
}

// Map returns the current map. Callers must not modify it.
func (s *MapStore) Map() *Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Raw returns the document the current map was parsed from.
func (s *MapStore) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.raw)
}

// Path returns the backing file path.
func (s *MapStore) Path() string {
	return s.path
}

// OnReload registers fn to run after each successful swap.
func (s *MapStore) OnReload(fn func(*Map)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Reload re-reads the backing file. An unchanged document is a no-op.
func (s *MapStore) Reload() error {
	if s.path == "" {
		return errors.New("map store has no backing file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading map file: %w", err)
	}
	return s.swap(data)
}

// Replace validates data, writes it to the backing file and swaps it in.
// Nothing is written when validation fails.
func (s *MapStore) Replace(data []byte) error {
	if s.path == "" {
		return errors.New("map store has no backing file")
	}
	if _, err := ParseMap(data); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing map file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing map file: %w", err)
	}
	return s.swap(data)
}

func (s *MapStore) swap(data []byte) error {
	s.mu.RLock()
	unchanged := bytes.Equal(data, s.raw)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	m, err := ParseMap(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current, s.raw = m, bytes.Clone(data)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("dynalite map loaded", "path", s.path, "areas", len(m.Areas))
	}

	s.listenersMu.Lock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
	return nil
}

// Watch reloads the map whenever the backing file changes, until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file by rename are followed.
func (s *MapStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("map store has no backing file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating map watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching map directory: %w", err)
	}

	go func() {
		defer w.Close()
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if err := s.Reload(); err != nil && s.logger != nil {
					s.logger.Warn("dynalite map reload failed, keeping previous map", "path", s.path, "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if s.logger != nil {
					s.logger.Warn("map watcher error", "error", err)
				}
			}
		}
	}()
	return nil
}
