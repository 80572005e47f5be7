// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Assets    AssetsConfig    `yaml:"assets"`
	AR        ARConfig        `yaml:"ar"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Fullscreen    bool    `yaml:"fullscreen"`
	VSync         bool    `yaml:"vsync"`
	FPSLimit      int     `yaml:"fps_limit"`
	PixelRatio    float32 `yaml:"pixel_ratio"` // 0 uses the display's ratio
	Headless      bool    `yaml:"headless"`
	ScreenshotDir string  `yaml:"screenshot_dir"`
}

// FrameInterval is the pacing interval for FPSLimit, or 0 for unpaced.
func (g GraphicsConfig) FrameInterval() time.Duration {
	if g.FPSLimit <= 0 {
		return 0
	}
	return time.Second / time.Duration(g.FPSLimit)
}

// ViewerConfig holds session defaults.
type ViewerConfig struct {
	DampingFactor float32 `yaml:"damping_factor"`
	Lighting      bool    `yaml:"lighting"` // static viewers start with lights on
}

// AssetsConfig holds asset fetching settings.
type AssetsConfig struct {
	Root      string        `yaml:"root"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxSizeMB int           `yaml:"max_size_mb"`
	NoCache   bool          `yaml:"no_cache"`
}

// MaxSize returns the asset size cap in bytes.
func (a AssetsConfig) MaxSize() int64 { return int64(a.MaxSizeMB) << 20 }

// ARConfig holds immersive emulation settings.
type ARConfig struct {
	Emulate   bool      `yaml:"emulate"`
	Planes    []float32 `yaml:"planes"`
	EyeHeight float32   `yaml:"eye_height"`
}

// MountConfig describes one viewer on the page. Either Activity names a
// catalogue entry or Attributes carries the mount's data attributes.
type MountConfig struct {
	ID         string            `yaml:"id"`
	Activity   string            `yaml:"activity,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// CatalogueConfig holds where descriptors come from.
type CatalogueConfig struct {
	File   string        `yaml:"file"`
	URL    string        `yaml:"url"` // base of the activities API
	Mounts []MountConfig `yaml:"mounts"`
}

// StatusConfig holds the status feed settings.
type StatusConfig struct {
	Listen string `yaml:"listen"` // empty disables the feed
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Viewer: ViewerConfig{
			DampingFactor: 0.25,
		},
		Assets: AssetsConfig{
			Root:      ".",
			Timeout:   30 * time.Second,
			MaxSizeMB: 256,
		},
		AR: ARConfig{
			Planes:    []float32{0},
			EyeHeight: 1.6,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
