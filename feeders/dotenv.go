package feeders

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DotEnvFeeder loads KEY=VALUE pairs from a .env style file into the
// process environment, then defers to the EnvFeeder. Variables already
// present in the environment are not overridden, so real environment
// values win over file values.
type DotEnvFeeder struct {
	Path string
	env  EnvFeeder
}

// NewDotEnvFeeder creates a DotEnvFeeder reading the given file. A missing
// file is not an error; the feeder simply falls through to the process
// environment.
func NewDotEnvFeeder(path string) DotEnvFeeder {
	return DotEnvFeeder{Path: path}
}

// Feed loads the file into the environment and feeds the structure.
func (f DotEnvFeeder) Feed(structure any) error {
	if err := f.loadFile(); err != nil {
		return err
	}
	return f.env.Feed(structure)
}

func (f DotEnvFeeder) loadFile() error {
	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open env file %s: %w", f.Path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, present := os.LookupEnv(key); !present {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env %s: %w", key, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read env file %s: %w", f.Path, err)
	}
	return nil
}
