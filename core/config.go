package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration read from a TOML file.
type Config struct {
	Window      WindowConfig `toml:"window"`
	TargetFPS   int          `toml:"target_fps"`
	ExitOnError bool         `toml:"exit_on_error"`
	LogLevel    string       `toml:"log_level"`
	Background  [4]float32   `toml:"background"`
	Ambient     [3]float32   `toml:"ambient"`
	// PostProcess lists built-in post stages by name, applied in order.
	PostProcess  []string `toml:"post_process"`
	WatchShaders bool     `toml:"watch_shaders"`
}

func DefaultConfig() Config {
	return Config{
		Window:      DefaultWindowConfig(),
		TargetFPS:   60,
		ExitOnError: false,
		LogLevel:    "info",
		Background:  [4]float32{0.1, 0.1, 0.12, 1},
		Ambient:     [3]float32{0.15, 0.15, 0.15},
	}
}

func (c Config) BackgroundColor() Color {
	return Color{R: c.Background[0], G: c.Background[1], B: c.Background[2], A: c.Background[3]}
}

func (c Config) AmbientColor() Color {
	return Color{R: c.Ambient[0], G: c.Ambient[1], B: c.Ambient[2], A: 1}
}

// ParseConfig decodes TOML on top of DefaultConfig, so absent keys keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfig reads path. A missing file yields DefaultConfig without error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config %q: %w", path, err)
	}
	return ParseConfig(data)
}

func (c Config) Validate() error {
	if c.TargetFPS <= 0 {
		return fmt.Errorf("target_fps must be positive, got %d", c.TargetFPS)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}

type WindowConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Title      string `toml:"title"`
	Resizable  bool   `toml:"resizable"`
	VSync      bool   `toml:"vsync"`
	Fullscreen bool   `toml:"fullscreen"`
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:      1280,
		Height:     720,
		Title:      "Deferred Engine",
		Resizable:  true,
		VSync:      true,
		Fullscreen: false,
	}
}
