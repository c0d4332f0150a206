package feeders

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlFeeder reads configuration from a TOML file. Tables map to
// configuration sections the same way YamlFeeder's top-level keys do.
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a TomlFeeder reading the specified file. A missing
// file is not an error.
func NewTomlFeeder(path string) TomlFeeder {
	return TomlFeeder{Path: path}
}

// Feed unmarshals the whole TOML document into target.
func (t TomlFeeder) Feed(target any) error {
	data, ok, err := t.read()
	if err != nil || !ok {
		return err
	}
	if err := toml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse TOML %s: %w", t.Path, err)
	}
	return nil
}

// FeedKey extracts a single top-level table from the TOML document into
// target. An absent table is not an error.
func (t TomlFeeder) FeedKey(key string, target any) error {
	data, ok, err := t.read()
	if err != nil || !ok {
		return err
	}

	var all map[string]toml.Primitive
	meta, err := toml.Decode(string(data), &all)
	if err != nil {
		return fmt.Errorf("failed to parse TOML %s: %w", t.Path, err)
	}

	prim, exists := all[key]
	if !exists {
		return nil
	}
	if err := meta.PrimitiveDecode(prim, target); err != nil {
		return fmt.Errorf("failed to decode TOML table %s: %w", key, err)
	}
	return nil
}

func (t TomlFeeder) read() ([]byte, bool, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read TOML file %s: %w", t.Path, err)
	}
	return data, true, nil
}
