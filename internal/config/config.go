// Package config loads CLI-facing interpreter options from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options holds interpreter settings that don't belong in the image itself.
// The glulx command applies Acceleration (whether accelerated veneer
// functions are used) and a non-zero RandomSeed; Debug, ReportProtect and
// MaxUndoStates are loaded but not consulted by any code (trace verbosity
// comes from the --debug flag, and the engine's undo cap is fixed at 3).
type Options struct {
	Debug          bool   `yaml:"debug"`
	Acceleration   bool   `yaml:"acceleration"`
	RandomSeed     uint32 `yaml:"random_seed"`
	ReportProtect  bool   `yaml:"report_protect"`
	MaxUndoStates  int    `yaml:"max_undo_states"`
}

// Default returns the options an interpreter runs with when no config file
// is supplied.
func Default() Options {
	return Options{
		Debug:         false,
		Acceleration:  true,
		RandomSeed:    0,
		ReportProtect: false,
		MaxUndoStates: 3,
	}
}

// Load reads options from a YAML file, starting from Default() so a partial
// file only overrides the fields it sets.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}
