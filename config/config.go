// Package config holds the player settings loaded from a YAML file.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr string `yaml:"addr"`
	// ConvertUnits scales root translation from inches to metres while loading.
	ConvertUnits bool   `yaml:"convert_units"`
	Encoding     string `yaml:"encoding"`
	Loop         bool   `yaml:"loop"`
	// StreamFPS is the rate of pose messages on the websocket stream.
	StreamFPS int    `yaml:"stream_fps"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
	// Watch reloads the served file when it changes on disk.
	Watch     bool   `yaml:"watch"`
	StaticDir string `yaml:"static_dir"`
	ExportDir string `yaml:"export_dir"`
}

func Default() Config {
	return Config{
		Addr:         ":8000",
		ConvertUnits: true,
		Encoding:     GetEncoding().String(),
		Loop:         true,
		StreamFPS:    30,
		LogLevel:     "info",
		LogPretty:    true,
		Watch:        false,
		StaticDir:    "web/data",
		ExportDir:    "export",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return cfg, errors.Errorf("Unsupported config format %q (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "Failed to read config %q", path)
	}

	if err := cfg.decode(data); err != nil {
		return cfg, errors.Wrapf(err, "Failed to parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "Invalid config %q", path)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.StreamFPS <= 0 || c.StreamFPS > 240 {
		return errors.Errorf("stream_fps %d out of range 1..240", c.StreamFPS)
	}
	if _, err := FindEncoding(c.Encoding); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level")
	}
	return nil
}

// Apply switches the process wide text encoding to the configured one.
func (c *Config) Apply() error {
	return SetEncoding(c.Encoding)
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
