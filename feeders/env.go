// Package feeders provides configuration feeders for the keel config
// loader: process environment, .env files, YAML files, and TOML files.
package feeders

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// Feeder errors
var (
	ErrNotAStructPointer = errors.New("config target must be a pointer to a struct")
	ErrInvalidFieldValue = errors.New("invalid value for field")
)

// EnvFeeder populates struct fields tagged `env:"NAME"` from environment
// variables. Nested structs are walked recursively; fields without an env
// tag are left untouched, so the env feeder can layer on top of file
// feeders.
type EnvFeeder struct{}

// NewEnvFeeder creates a new EnvFeeder.
func NewEnvFeeder() EnvFeeder {
	return EnvFeeder{}
}

// Feed populates structure from the process environment.
func (EnvFeeder) Feed(structure any) error {
	v := reflect.ValueOf(structure)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotAStructPointer
	}
	return feedStructFromEnv(v.Elem())
}

func feedStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := feedStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		name, ok := fieldType.Tag.Lookup("env")
		if !ok || name == "" {
			continue
		}

		raw, present := os.LookupEnv(name)
		if !present {
			continue
		}

		if err := setFieldFromString(field, raw); err != nil {
			return fmt.Errorf("%w %s (env %s): %v", ErrInvalidFieldValue, fieldType.Name, name, err)
		}
	}

	return nil
}

// setFieldFromString converts raw into the field's type using golobby/cast,
// with explicit handling for time.Duration which cast does not cover.
func setFieldFromString(field reflect.Value, raw string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
		return nil
	}

	value, err := cast.FromType(raw, field.Type())
	if err != nil {
		return fmt.Errorf("casting value: %w", err)
	}
	field.Set(reflect.ValueOf(value).Convert(field.Type()))
	return nil
}
