package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagHeadless   = flag.Bool("headless", false, "Run without a window")
	flagAR         = flag.Bool("ar", false, "Emulate an immersive AR runtime")
	flagCatalogue  = flag.String("catalogue", "", "Descriptor catalogue file")
	flagAssets     = flag.String("assets", "", "Directory relative asset paths resolve against")
	flagStatus     = flag.String("status", "", "Status feed listen address")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// Args returns the positional arguments left after flags.
func Args() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagHeadless {
		cfg.Graphics.Headless = true
	}
	if *flagAR {
		cfg.AR.Emulate = true
	}
	if *flagCatalogue != "" {
		cfg.Catalogue.File = *flagCatalogue
	}
	if *flagAssets != "" {
		cfg.Assets.Root = *flagAssets
	}
	if *flagStatus != "" {
		cfg.Status.Listen = *flagStatus
	}
}
