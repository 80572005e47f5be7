// Package main is the entry point for the Wavefront viewer.
//
// Each positional argument is a model file shown in its own viewer:
//
//	wavefront vase.obj walk.dae ar:chair.obj
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/app"
	"github.com/Faultbox/wavefront-viewer/internal/config"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/logger"
	"github.com/Faultbox/wavefront-viewer/internal/platform/desktop"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Wavefront Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := app.NewLoader(cfg, logger.Log)

	var display app.Display
	if cfg.Graphics.Headless {
		display = app.HeadlessDisplay(cfg, loader, logger.Named("headless"))
	} else {
		display, err = windowDisplay(cfg, loader)
		if err != nil {
			logger.Error("failed to open window", zap.Error(err))
			os.Exit(1)
		}
	}

	a, err := app.New(cfg, display, config.Args(), logger.Named("app"))
	if err != nil {
		if display.Close != nil {
			display.Close()
		}
		logger.Error("failed to start", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func windowDisplay(cfg *config.Config, loader *model.Loader) (app.Display, error) {
	win, err := desktop.OpenWindow(desktop.WindowConfig{
		Title:      "Wavefront Viewer",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	}, logger.Named("window"))
	if err != nil {
		return app.Display{}, err
	}
	host := desktop.NewHost(win, logger.Named("host"))
	host.SetScreenshotDir(cfg.Graphics.ScreenshotDir)
	platform := desktop.NewPlatform(loader, logger.Named("gl"))
	return app.Display{
		Host:     host,
		Platform: platform,
		Assets:   loader.Cache(),
		AddMount: func(id string, attrs map[string]string) { host.AddMount(id, attrs) },
		Run: func(ctx context.Context, interval time.Duration) error {
			return host.Run(ctx, interval)
		},
		Close: func() {
			platform.Close()
			win.Close()
		},
	}, nil
}
