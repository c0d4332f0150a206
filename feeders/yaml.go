package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads configuration from a YAML file. The whole document feeds
// the application config; FeedKey extracts a top-level key for a module's
// configuration section.
type YamlFeeder struct {
	Path string
}

// NewYamlFeeder creates a YamlFeeder reading the specified file. A missing
// file is not an error so that purely env-driven deployments work without
// a config file on disk.
func NewYamlFeeder(path string) YamlFeeder {
	return YamlFeeder{Path: path}
}

// Feed unmarshals the whole YAML document into target.
func (y YamlFeeder) Feed(target any) error {
	data, ok, err := y.read()
	if err != nil || !ok {
		return err
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}
	return nil
}

// FeedKey extracts a single top-level key from the YAML document into
// target. An absent key is not an error.
func (y YamlFeeder) FeedKey(key string, target any) error {
	data, ok, err := y.read()
	if err != nil || !ok {
		return err
	}

	var all map[string]yaml.Node
	if err := yaml.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}

	node, exists := all[key]
	if !exists {
		return nil
	}
	if err := node.Decode(target); err != nil {
		return fmt.Errorf("failed to decode YAML key %s: %w", key, err)
	}
	return nil
}

func (y YamlFeeder) read() ([]byte, bool, error) {
	data, err := os.ReadFile(y.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read YAML file %s: %w", y.Path, err)
	}
	return data, true, nil
}
