package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyLogging = "logging"
	keyBatch   = "batch"
	keyState   = "state"
	keyContent = "content"
	keyActions = "actions"
)

// ErrUnknownKey is returned for top-level keys that map to no section.
var ErrUnknownKey = errors.New("unknown config key")

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// target. A section present in the file is decoded over the target's current
// values, so keys missing from the section keep their defaults. Sections
// absent from the file are left unchanged.
func ShallowMergeYAML(target *Config, path string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", path, err)
	}

	for key, node := range overlay {
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying config section %q: %w", key, err)
		}
	}
	return nil
}

// decodeSection decodes one section onto the matching field of target. Maps
// are replaced rather than merged so a file fully owns the sections it names.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyLogging:
		return node.Decode(&target.Logging)
	case keyBatch:
		return node.Decode(&target.Batch)
	case keyState:
		return node.Decode(&target.State)
	case keyContent:
		return node.Decode(&target.Content)
	case keyActions:
		var v ActionsConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Actions = v
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}
