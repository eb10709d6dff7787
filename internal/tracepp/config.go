// Package tracepp holds the ambient configuration for the preprocessor:
// the on-disk YAML config file, its defaults, and validation of its
// options.
package tracepp

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/stealthrocket/tracepp/internal/human"
	"github.com/stealthrocket/tracepp/internal/trace"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath  = "~/.tracepp/config.yaml"
	defaultColumnsBits = 13
	maxColumnsBits     = 30
)

// ConfigPath is the path to the tracepp configuration file, overridable
// via the -c/--config flag.
var ConfigPath human.Path = defaultConfigPath

// Config is the preprocessor's ambient configuration, loaded from YAML.
type Config struct {
	MapDirectory    human.Path           `yaml:"map-directory"`
	OutputDirectory Nullable[human.Path] `yaml:"output-directory"`
	StoreTraces     bool                 `yaml:"store-traces"`
	ColumnsBits     int                  `yaml:"columns-bits"`
}

// DefaultConfig returns the configuration a bare invocation would use
// before any YAML overrides are applied.
func DefaultConfig() *Config {
	return &Config{ColumnsBits: defaultColumnsBits}
}

// LoadConfig opens and reads the configuration file at ConfigPath.
func LoadConfig() (*Config, error) {
	r, _, err := OpenConfig()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadConfig(r)
}

// OpenConfig opens the configuration file, falling back to the marshaled
// default configuration if the file does not exist.
func OpenConfig() (io.ReadCloser, string, error) {
	path, err := ConfigPath.Resolve()
	if err != nil {
		return nil, path, err
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, err
		}
		b, _ := yaml.Marshal(DefaultConfig())
		return io.NopCloser(bytes.NewReader(b)), path, nil
	}
	return f, path, nil
}

// ReadConfig parses and validates configuration from r.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports a missing map-directory, columns-bits outside the
// 1-30 range, or store-traces set without an output-directory.
func (c *Config) Validate() error {
	if c.MapDirectory == "" {
		return trace.NewConfigError("map-directory", "required")
	}
	if c.ColumnsBits < 1 || c.ColumnsBits > maxColumnsBits {
		return trace.NewConfigError("columns-bits", "must be between 1 and 30")
	}
	if c.StoreTraces {
		if _, ok := c.OutputDirectory.Value(); !ok {
			return trace.NewConfigError("store-traces", "requires output-directory to be set")
		}
	}
	return nil
}

// Nullable wraps a value that may be entirely absent from the YAML
// document, distinguishing "not set" from the type's zero value.
type Nullable[T any] struct {
	value T
	exist bool
}

func NullableValue[T any](v T) Nullable[T] {
	return Nullable[T]{value: v, exist: true}
}

func (v Nullable[T]) Value() (T, bool) {
	return v.value, v.exist
}

func (v Nullable[T]) MarshalYAML() (any, error) {
	if !v.exist {
		return nil, nil
	}
	return v.value, nil
}

func (v *Nullable[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "~" || node.Value == "null" {
		v.exist = false
		return nil
	}
	if err := node.Decode(&v.value); err != nil {
		v.exist = false
		return err
	}
	v.exist = true
	return nil
}
