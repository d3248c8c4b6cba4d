package config

import (
	"fmt"
	"sync"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath string = "config.yaml"
	DefaultModelDir   string = "my_model/"
)

var SourcesList = [...]string{
	string(SourceLocal),
	string(SourceWebcam),
}

const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

type LocalConfig struct {
	Path string `koanf:"path"`
}

type WebcamConfig struct {
	DeviceID string `koanf:"device_id"`
	Flip     bool   `koanf:"flip"`
}

type ModelConfig struct {
	Backend      string `koanf:"backend"`
	Dir          string `koanf:"dir"`
	ModelFile    string `koanf:"model_file"`
	MetadataFile string `koanf:"metadata_file"`
	// OnnxLibrary points at the onnxruntime shared library; empty uses the
	// platform default lookup.
	OnnxLibrary string `koanf:"onnx_library"`
	RemoteURL   string `koanf:"remote_url"`
}

type VerdictConfig struct {
	HealthyLabel      string `koanf:"healthy_label"`
	HealthyCalories   int    `koanf:"healthy_calories"`
	UnhealthyCalories int    `koanf:"unhealthy_calories"`
}

type HistoryConfig struct {
	Capacity int `koanf:"capacity"`
}

type SnapshotConfig struct {
	// Dir, when set, receives snapshots directly instead of a save dialog.
	Dir     string `koanf:"dir"`
	Format  string `koanf:"format"`
	Quality int    `koanf:"quality"`
}

type Config struct {
	mu sync.RWMutex

	LogLevel    string `koanf:"log_level"`
	MetricsAddr string `koanf:"metrics_addr"`
	DarkTheme   bool   `koanf:"dark_theme"`

	ActiveSource SourceType `koanf:"active_source"`
	TargetFPS    uint       `koanf:"target_fps"`
	ScaledWidth  int        `koanf:"scaled_width"`
	ScaledHeight int        `koanf:"scaled_height"`
	// SquareCrop center-crops frames to a square before classification.
	SquareCrop bool `koanf:"square_crop"`

	Local    LocalConfig    `koanf:"local"`
	Webcam   WebcamConfig   `koanf:"webcam"`
	Model    ModelConfig    `koanf:"model"`
	Verdict  VerdictConfig  `koanf:"verdict"`
	History  HistoryConfig  `koanf:"history"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = path
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetFlip() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.Flip
}

func (c *Config) SetFlip(flip bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.Flip = flip
}

func (c *Config) GetSquareCrop() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SquareCrop
}

func (c *Config) SetSquareCrop(crop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SquareCrop = crop
}

func (c *Config) IsDark() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DarkTheme
}

func (c *Config) SetDark(dark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DarkTheme = dark
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.ActiveSource {
	case SourceLocal, SourceWebcam:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.ActiveSource)
	}

	if c.ScaledWidth <= 0 || c.ScaledHeight <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidConfig, c.ScaledWidth, c.ScaledHeight)
	}

	switch c.Model.Backend {
	case BackendONNX:
		if c.Model.Dir == "" {
			return fmt.Errorf("%w: model.dir must not be empty", ErrInvalidConfig)
		}
	case BackendRemote:
		if c.Model.RemoteURL == "" {
			return fmt.Errorf("%w: model.remote_url must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown model backend %q", ErrInvalidConfig, c.Model.Backend)
	}

	if c.Verdict.HealthyLabel == "" {
		return fmt.Errorf("%w: verdict.healthy_label must not be empty", ErrInvalidConfig)
	}

	if c.History.Capacity <= 0 {
		return fmt.Errorf("%w: history.capacity must be positive", ErrInvalidConfig)
	}

	return nil
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		ActiveSource: SourceWebcam,
		TargetFPS:    30,
		ScaledWidth:  300,
		ScaledHeight: 300,
		SquareCrop:   true,
		Local:        LocalConfig{Path: ""},
		Webcam:       WebcamConfig{DeviceID: "/dev/video0", Flip: true},
		Model: ModelConfig{
			Backend:      BackendONNX,
			Dir:          DefaultModelDir,
			ModelFile:    "model.onnx",
			MetadataFile: "metadata.json",
			RemoteURL:    "ws://localhost:8080/ws",
		},
		Verdict: VerdictConfig{
			HealthyLabel:      "Healthy",
			HealthyCalories:   200,
			UnhealthyCalories: 450,
		},
		History:  HistoryConfig{Capacity: 6},
		Snapshot: SnapshotConfig{Format: "png", Quality: 90},
	}
}
