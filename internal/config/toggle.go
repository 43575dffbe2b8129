package config

import (
	"fmt"

	"git.home.luguber.info/inful/xcodebuilder/internal/foundation"
	"gopkg.in/yaml.v3"
)

// Toggle is a setting that distinguishes "never configured" from an explicit choice.
type Toggle string

const (
	ToggleUnset    Toggle = ""
	ToggleEnabled  Toggle = "enabled"
	ToggleDisabled Toggle = "disabled"
)

var toggleNormalizer = foundation.NewNormalizer(map[string]Toggle{
	"enabled":  ToggleEnabled,
	"true":     ToggleEnabled,
	"yes":      ToggleEnabled,
	"on":       ToggleEnabled,
	"disabled": ToggleDisabled,
	"false":    ToggleDisabled,
	"no":       ToggleDisabled,
	"off":      ToggleDisabled,
	"":         ToggleUnset,
}, ToggleUnset)

// NormalizeToggle parses a loosely written toggle value.
func NormalizeToggle(raw string) (Toggle, error) {
	return toggleNormalizer.NormalizeWithError(raw)
}

// Enabled reports whether the toggle is explicitly on.
func (t Toggle) Enabled() bool { return t == ToggleEnabled }

// UnmarshalYAML accepts booleans and the enabled/disabled spellings.
func (t *Toggle) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: toggle must be a scalar", node.Line)
	}
	v, err := NormalizeToggle(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = v
	return nil
}

// ResolveProvideVersion decides whether version templates are written back
// before the build. An unset toggle is enabled only when a template is present.
func ResolveProvideVersion(toggle Toggle, marketingVersion, buildNumber string) Toggle {
	if toggle != ToggleUnset {
		return toggle
	}
	if marketingVersion != "" || buildNumber != "" {
		return ToggleEnabled
	}
	return ToggleDisabled
}
