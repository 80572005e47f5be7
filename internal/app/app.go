// Package app wires configuration, a display, descriptor sources and the
// status feed into a running page of viewer sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/config"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/platform/headless"
	"github.com/Faultbox/wavefront-viewer/internal/platform/xrsim"
	"github.com/Faultbox/wavefront-viewer/internal/statusfeed"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

// lookStep is how far one key press turns the simulated AR viewer.
const lookStep = 0.05

// Display is a host with the platform that draws into it.
type Display struct {
	Host     viewer.Host
	Platform viewer.Platform
	// Assets is the cache the platform loads through; nil when disabled.
	Assets   *assets.Cache
	AddMount func(id string, attrs map[string]string)
	Run      func(ctx context.Context, interval time.Duration) error
	Close    func()
}

// HeadlessDisplay builds a display with no window.
func HeadlessDisplay(cfg *config.Config, loader *model.Loader, log *zap.Logger) Display {
	host := headless.NewHost(viewer.Size{Width: cfg.Graphics.Width, Height: cfg.Graphics.Height})
	interval := cfg.Graphics.FrameInterval()
	return Display{
		Host:     host,
		Platform: headless.New(loader, log),
		Assets:   loader.Cache(),
		AddMount: func(id string, attrs map[string]string) { host.AddMount(id, attrs) },
		Run: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				d = interval
			}
			if d <= 0 {
				d = time.Second / 60
			}
			return host.Run(ctx, d)
		},
	}
}

// NewLoader builds the asset fetcher and model loader from cfg.
func NewLoader(cfg *config.Config, log *zap.Logger) *model.Loader {
	fetcher := assets.NewFetcher(assets.Options{
		Root:    cfg.Assets.Root,
		Timeout: cfg.Assets.Timeout,
		MaxSize: cfg.Assets.MaxSize(),
		NoCache: cfg.Assets.NoCache,
	}, log.Named("assets"))
	return model.NewLoader(fetcher, log.Named("model"))
}

// App is a page of viewer sessions on one display.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	display Display
	xr      *xrsim.Platform
	source  descriptor.Source
	feed    *statusfeed.Server
	page    *viewer.Page
	mounts  []config.MountConfig
}

// New prepares the page. Mounts come from the configuration followed by
// one mount per model path in args.
func New(cfg *config.Config, display Display, args []string, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log, display: display}

	platform := display.Platform
	if cfg.AR.Emulate {
		a.xr = xrsim.New(platform, display.Host, xrsim.Config{
			Planes:    cfg.AR.Planes,
			EyeHeight: cfg.AR.EyeHeight,
		}, log.Named("xrsim"))
		platform = a.xr
		a.bindXRKeys()
	}

	switch {
	case cfg.Catalogue.File != "":
		c, err := descriptor.LoadCatalogue(cfg.Catalogue.File)
		if err != nil {
			return nil, err
		}
		a.source = c
		log.Info("catalogue loaded", zap.String("file", cfg.Catalogue.File), zap.Int("activities", len(c.IDs())))
	case cfg.Catalogue.URL != "":
		a.source = descriptor.NewHTTPSource(cfg.Catalogue.URL, cfg.Assets.Timeout)
	}

	var observers viewer.Observers
	observers = append(observers, viewer.ObserverFunc(func(e viewer.Event) {
		log.Debug("session event",
			zap.String("mount", e.MountID),
			zap.Stringer("kind", e.Kind),
			zap.Stringer("state", e.State))
	}))
	if cfg.Status.Listen != "" {
		a.feed = statusfeed.New(nil, log.Named("status"))
		observers = append(observers, a.feed)
	}

	a.page = viewer.NewPage(display.Host, platform, viewer.Options{
		Logger:        log.Named("viewer"),
		Observer:      observers,
		DampingFactor: cfg.Viewer.DampingFactor,
		LightingOn:    cfg.Viewer.Lighting,
	})
	if a.feed != nil {
		a.feed.SetSource(a.page)
		if display.Assets != nil {
			a.feed.SetAssetCache(display.Assets)
		}
	}

	a.mounts = append(append(a.mounts, cfg.Catalogue.Mounts...), MountsFromArgs(args, func(p string) bool {
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.Assets.Root, p)
		}
		return fileExists(p)
	})...)
	if len(a.mounts) == 0 {
		return nil, errors.New("no models to show: configure catalogue mounts or pass model paths")
	}
	for _, m := range a.mounts {
		display.AddMount(m.ID, m.Attributes)
	}
	return a, nil
}

// Page returns the session registry.
func (a *App) Page() *viewer.Page { return a.page }

// XR returns the AR simulator, or nil when emulation is off.
func (a *App) XR() *xrsim.Platform { return a.xr }

// Start initialises one session per mount. A failing mount shows its
// fallback and does not stop the others.
func (a *App) Start(ctx context.Context) {
	for _, m := range a.mounts {
		var err error
		if m.Activity != "" {
			err = a.startActivity(ctx, m)
		} else {
			_, err = a.page.InitFromAttributes(m.ID)
		}
		if err != nil {
			a.log.Warn("viewer not started", zap.String("mount", m.ID), zap.Error(err))
		}
	}
}

func (a *App) startActivity(ctx context.Context, m config.MountConfig) error {
	if a.source == nil {
		return fmt.Errorf("mount %s: %w", m.ID, descriptor.ErrUnknownActivity)
	}
	desc, err := a.source.ModelDescriptor(ctx, m.Activity)
	if err != nil {
		if mount, ok := a.display.Host.Mount(m.ID); ok {
			mount.ShowError(viewer.HeadingModelUnavailable)
		}
		return err
	}
	_, err = a.page.InitSession(m.ID, desc)
	return err
}

// Run starts the sessions and drives the display until it quits or ctx is
// done. The status feed runs alongside.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	if a.feed != nil {
		g.Go(func() error { return a.feed.ListenAndServe(ctx, a.cfg.Status.Listen) })
	}
	g.Go(func() error {
		defer cancel()
		err := a.display.Run(ctx, a.cfg.Graphics.FrameInterval())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// Close tears every session down and releases the display.
func (a *App) Close() {
	a.page.TeardownAll()
	if a.feed != nil {
		a.feed.Close()
	}
	if a.display.Close != nil {
		a.display.Close()
	}
	a.log.Info("all viewers closed")
}

// bindXRKeys maps the keyboard to the simulated immersive session: Space
// selects, WASD looks around.
func (a *App) bindXRKeys() {
	a.display.Host.Events().On(input.EventKeyDown, func(e input.Event) {
		s := a.xr.Current()
		if s == nil {
			return
		}
		switch e.Key {
		case input.KeySpace:
			s.Select()
		case "KeyA":
			s.Look(lookStep, 0)
		case "KeyD":
			s.Look(-lookStep, 0)
		case "KeyW":
			s.Look(0, lookStep)
		case "KeyS":
			s.Look(0, -lookStep)
		}
	})
}

// MountsFromArgs turns model paths into mounts. ".dae" files become
// animated viewers; ".obj" files become static viewers with the sibling
// ".mtl" when it exists. A leading "ar:" requests an AR viewer.
func MountsFromArgs(args []string, exists func(string) bool) []config.MountConfig {
	var out []config.MountConfig
	for i, arg := range args {
		kind := ""
		if rest, ok := strings.CutPrefix(arg, "ar:"); ok {
			kind, arg = string(descriptor.KindAR), rest
		}
		attrs := map[string]string{}
		if kind != "" {
			attrs[descriptor.AttrKind] = kind
		}
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".dae":
			attrs[descriptor.AttrDAE] = arg
		default:
			attrs[descriptor.AttrOBJ] = arg
			mtl := strings.TrimSuffix(arg, filepath.Ext(arg)) + ".mtl"
			if exists(mtl) {
				attrs[descriptor.AttrMTL] = mtl
			}
		}
		out = append(out, config.MountConfig{ID: "model-" + strconv.Itoa(i+1), Attributes: attrs})
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
