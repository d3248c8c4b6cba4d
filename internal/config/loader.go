package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "FOODVISION_"
	EnvConfigPath = EnvPrefix + "CONFIG"
)

// Load layers defaults, the YAML file named by FOODVISION_CONFIG (or
// config.yaml when it exists) and FOODVISION_* environment variables.
// Nested keys use a double underscore: FOODVISION_MODEL__BACKEND.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.New("config: empty path")
	}

	k := koanf.New(".")
	for key, val := range c.flatten() {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}

	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	return os.WriteFile(path, out, 0o644)
}

func (c *Config) SaveByDefault() error {
	return c.Save(DefaultConfigPath)
}

func (c *Config) flatten() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"log_level":                  c.LogLevel,
		"metrics_addr":               c.MetricsAddr,
		"dark_theme":                 c.DarkTheme,
		"active_source":              string(c.ActiveSource),
		"target_fps":                 c.TargetFPS,
		"scaled_width":               c.ScaledWidth,
		"scaled_height":              c.ScaledHeight,
		"square_crop":                c.SquareCrop,
		"local.path":                 c.Local.Path,
		"webcam.device_id":           c.Webcam.DeviceID,
		"webcam.flip":                c.Webcam.Flip,
		"model.backend":              c.Model.Backend,
		"model.dir":                  c.Model.Dir,
		"model.model_file":           c.Model.ModelFile,
		"model.metadata_file":        c.Model.MetadataFile,
		"model.onnx_library":         c.Model.OnnxLibrary,
		"model.remote_url":           c.Model.RemoteURL,
		"verdict.healthy_label":      c.Verdict.HealthyLabel,
		"verdict.healthy_calories":   c.Verdict.HealthyCalories,
		"verdict.unhealthy_calories": c.Verdict.UnhealthyCalories,
		"history.capacity":           c.History.Capacity,
		"snapshot.dir":               c.Snapshot.Dir,
		"snapshot.format":            c.Snapshot.Format,
		"snapshot.quality":           c.Snapshot.Quality,
	}
}
