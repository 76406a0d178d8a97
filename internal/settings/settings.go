// Package settings loads, diffs and watches the monitor configuration file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Setting keys, as used in the YAML file and in change notifications.
const (
	KeySelectedPlugins  = "selected-plugins"
	KeyInputDevice      = "input-device"
	KeyUseDefaultDevice = "use-default-input-device"
	KeyBypass           = "bypass"
	KeyMinimumFrequency = "minimum-frequency"
	KeyMaximumFrequency = "maximum-frequency"
	KeyNPoints          = "n-points"
	KeyHistogramBins    = "histogram-bins"
	KeyWindowSize       = "window-size"
	KeyShow             = "show"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("settings: invalid value")

// Values is the full configuration.
type Values struct {
	SelectedPlugins  []string `yaml:"selected-plugins"`
	InputDevice      string   `yaml:"input-device"`
	UseDefaultDevice bool     `yaml:"use-default-input-device"`
	Bypass           bool     `yaml:"bypass"`
	MinimumFrequency float64  `yaml:"minimum-frequency"`
	MaximumFrequency float64  `yaml:"maximum-frequency"`
	NPoints          int      `yaml:"n-points"`
	HistogramBins    int      `yaml:"histogram-bins"`
	WindowSize       int      `yaml:"window-size"`
	Show             bool     `yaml:"show"`
}

// Default returns the built-in configuration.
func Default() Values {
	return Values{
		MinimumFrequency: 20,
		MaximumFrequency: 20000,
		NPoints:          100,
		HistogramBins:    100,
		WindowSize:       8192,
		Show:             true,
	}
}

// Validate checks ranges.
func (v Values) Validate() error {
	switch {
	case slices.Contains(v.SelectedPlugins, ""):
		return fmt.Errorf("%w: %s contains an empty name", ErrInvalid, KeySelectedPlugins)
	case v.MaximumFrequency <= 0:
		return fmt.Errorf("%w: %s = %g", ErrInvalid, KeyMaximumFrequency, v.MaximumFrequency)
	case v.MinimumFrequency <= 0:
		return fmt.Errorf("%w: %s = %g", ErrInvalid, KeyMinimumFrequency, v.MinimumFrequency)
	case v.NPoints < 2:
		return fmt.Errorf("%w: %s = %d", ErrInvalid, KeyNPoints, v.NPoints)
	case v.HistogramBins < 1:
		return fmt.Errorf("%w: %s = %d", ErrInvalid, KeyHistogramBins, v.HistogramBins)
	case v.WindowSize < 1:
		return fmt.Errorf("%w: %s = %d", ErrInvalid, KeyWindowSize, v.WindowSize)
	}
	return nil
}

// Parse decodes YAML over the defaults. Keys absent from data keep their
// default value.
func Parse(data []byte) (Values, error) {
	v := Default()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Values{}, fmt.Errorf("settings: decode: %w", err)
	}
	if err := v.Validate(); err != nil {
		return Values{}, err
	}
	return v, nil
}

// Load reads and parses the file at path.
func Load(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("settings: %w", err)
	}
	return Parse(data)
}

// Change is one modified key with its new value. Value holds the field's Go
// type: []string, string, bool, float64 or int.
type Change struct {
	Key   string
	Value any
}

// Diff lists the keys whose values differ between old and next, in a fixed
// order.
func Diff(old, next Values) []Change {
	var out []Change
	add := func(changed bool, key string, value any) {
		if changed {
			out = append(out, Change{Key: key, Value: value})
		}
	}

	add(!slices.Equal(old.SelectedPlugins, next.SelectedPlugins), KeySelectedPlugins, slices.Clone(next.SelectedPlugins))
	add(old.InputDevice != next.InputDevice, KeyInputDevice, next.InputDevice)
	add(old.UseDefaultDevice != next.UseDefaultDevice, KeyUseDefaultDevice, next.UseDefaultDevice)
	add(old.Bypass != next.Bypass, KeyBypass, next.Bypass)
	add(old.MinimumFrequency != next.MinimumFrequency, KeyMinimumFrequency, next.MinimumFrequency)
	add(old.MaximumFrequency != next.MaximumFrequency, KeyMaximumFrequency, next.MaximumFrequency)
	add(old.NPoints != next.NPoints, KeyNPoints, next.NPoints)
	add(old.HistogramBins != next.HistogramBins, KeyHistogramBins, next.HistogramBins)
	add(old.WindowSize != next.WindowSize, KeyWindowSize, next.WindowSize)
	add(old.Show != next.Show, KeyShow, next.Show)

	return out
}

// Changes lists every key of v, as if it had changed from nothing.
func Changes(v Values) []Change {
	return []Change{
		{Key: KeySelectedPlugins, Value: slices.Clone(v.SelectedPlugins)},
		{Key: KeyInputDevice, Value: v.InputDevice},
		{Key: KeyUseDefaultDevice, Value: v.UseDefaultDevice},
		{Key: KeyBypass, Value: v.Bypass},
		{Key: KeyMinimumFrequency, Value: v.MinimumFrequency},
		{Key: KeyMaximumFrequency, Value: v.MaximumFrequency},
		{Key: KeyNPoints, Value: v.NPoints},
		{Key: KeyHistogramBins, Value: v.HistogramBins},
		{Key: KeyWindowSize, Value: v.WindowSize},
		{Key: KeyShow, Value: v.Show},
	}
}
