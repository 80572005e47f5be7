package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if !c.Graphics.Headless && (c.Graphics.Width <= 0 || c.Graphics.Height <= 0) {
		errs = append(errs, fmt.Errorf("graphics: window size %dx%d", c.Graphics.Width, c.Graphics.Height))
	}
	if f := c.Viewer.DampingFactor; f < 0 || f > 1 {
		errs = append(errs, fmt.Errorf("viewer: damping_factor %v outside [0,1]", f))
	}
	seen := make(map[string]bool)
	for i, m := range c.Catalogue.Mounts {
		switch {
		case m.ID == "":
			errs = append(errs, fmt.Errorf("catalogue: mount %d has no id", i))
		case seen[m.ID]:
			errs = append(errs, fmt.Errorf("catalogue: duplicate mount %q", m.ID))
		case m.Activity != "" && c.Catalogue.File == "" && c.Catalogue.URL == "":
			errs = append(errs, fmt.Errorf("catalogue: mount %q names activity %q but no catalogue is configured", m.ID, m.Activity))
		}
		seen[m.ID] = true
	}
	return errors.Join(errs...)
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "WavefrontViewer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "WavefrontViewer")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "wavefront-viewer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "wavefront-viewer")
	}
}

// loadFromFile merges a YAML file over the existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
