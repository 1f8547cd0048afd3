package dynet

import "fmt"

// Publication is a brightness value to publish for one channel.
type Publication struct {
	Area       int
	Channel    ChannelID
	Brightness int
}

// Effective returns the preset and level lists that apply to a channel.
// Each list is resolved on its own: the channel's list if configured, else
// the area's, else the defaults. Unknown areas and channels resolve to the
// defaults.
func (m *Map) Effective(area int, ch ChannelID) (presets, levels []int) {
	presets, levels = m.Defaults.Presets, m.Defaults.Levels

	a, ok := m.Areas[area]
	if !ok {
		return presets, levels
	}
	if a.Presets != nil {
		presets = a.Presets
	}
	if a.Levels != nil {
		levels = a.Levels
	}

	c, ok := a.Channels[ch.String()]
	if !ok {
		return presets, levels
	}
	if c.Presets != nil {
		presets = c.Presets
	}
	if c.Levels != nil {
		levels = c.Levels
	}
	return presets, levels
}

// ResolveBrightness maps a brightness onto the preset of the channel whose
// level is nearest to it.
func (m *Map) ResolveBrightness(area int, ch ChannelID, brightness int) (preset, level int, err error) {
	presets, levels := m.Effective(area, ch)
	preset, level, err = NearestPreset(presets, levels, brightness)
	if err != nil {
		return 0, 0, fmt.Errorf("area %d channel %s: %w", area, ch, err)
	}
	return preset, level, nil
}

// Publications returns the brightness publications for a preset recalled
// on a channel. For ChannelAll the master publication comes first and is
// followed by one publication per other configured channel, in ascending
// channel order, carrying that channel's level nearest to the master level.
func (m *Map) Publications(area int, ch ChannelID, preset int) ([]Publication, error) {
	if _, err := m.Channel(area, ch); err != nil {
		return nil, err
	}

	presets, levels := m.Effective(area, ch)
	level, err := PresetLevel(presets, levels, preset)
	if err != nil {
		return nil, fmt.Errorf("area %d channel %s: %w", area, ch, err)
	}

	pubs := []Publication{{Area: area, Channel: ch, Brightness: level}}
	if !ch.IsAll() {
		return pubs, nil
	}

	for _, sib := range m.ChannelIDs(area) {
		if sib.IsAll() {
			continue
		}
		_, sibLevels := m.Effective(area, sib)
		brightness := 0
		if i := nearestIndex(sibLevels, level); i >= 0 {
			brightness = sibLevels[i]
		}
		pubs = append(pubs, Publication{Area: area, Channel: sib, Brightness: brightness})
	}
	return pubs, nil
}

// NearestPreset returns the preset whose level has the minimum absolute
// difference to brightness. Ties go to the lowest index.
func NearestPreset(presets, levels []int, brightness int) (preset, level int, err error) {
	i := nearestIndex(levels, brightness)
	if i < 0 || len(presets) == 0 {
		return 0, 0, ErrNoLevels
	}
	if i >= len(presets) {
		return 0, 0, fmt.Errorf("%w: level index %d has no preset", ErrNoLevels, i)
	}
	return presets[i], levels[i], nil
}

// PresetLevel returns the level aligned with preset. A preset without an
// aligned level maps to 0.
func PresetLevel(presets, levels []int, preset int) (int, error) {
	for i, p := range presets {
		if p != preset {
			continue
		}
		if i >= len(levels) {
			return 0, nil
		}
		return levels[i], nil
	}
	return 0, fmt.Errorf("%w: %d", ErrPresetNotFound, preset)
}

// nearestIndex returns the index of the value closest to target, the lowest
// index on ties, or -1 for an empty list.
func nearestIndex(values []int, target int) int {
	best, bestDiff := -1, 0
	for i, v := range values {
		d := v - target
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
