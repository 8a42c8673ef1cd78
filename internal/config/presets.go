package config

import (
	"sort"

	"github.com/san-kum/popsim/internal/region"
)

type Preset struct {
	Description string
	build       func(*Config)
}

var presets = map[string]Preset{
	"baseline": {
		Description: "default sampling ranges, capacity 100000, 50 time units",
		build:       func(*Config) {},
	},
	"crowded": {
		Description: "populations start near or above a reduced capacity",
		build: func(c *Config) {
			c.Capacity = 50000
			c.Bounds.Population = region.Range{Min: 40000, Max: 120000}
		},
	},
	"decline": {
		Description: "death rates exceed birth rates, populations shrink",
		build: func(c *Config) {
			c.Bounds.BirthRate = region.Range{Min: 0.005, Max: 0.015}
			c.Bounds.DeathRate = region.Range{Min: 0.02, Max: 0.04}
		},
	},
	"boom": {
		Description: "high birth rates over a long horizon, most regions saturate",
		build: func(c *Config) {
			c.Regions = 20
			c.Horizon = 100
			c.Points = 200
			c.Bounds.BirthRate = region.Range{Min: 0.05, Max: 0.1}
		},
	},
}

// GetPreset returns a fresh Config for the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.build(cfg)
	return cfg
}

func PresetDescription(name string) string {
	return presets[name].Description
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
