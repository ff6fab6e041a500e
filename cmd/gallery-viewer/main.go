package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/sudorandom/sim-gallery/pkg/config"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/hostbus"
	"github.com/sudorandom/sim-gallery/pkg/viewer"
)

type CLI struct {
	Config   string   `help:"Path to the TOML config file." default:"gallery.toml" type:"path"`
	Source   string   `help:"Data source: http or dir."`
	Dir      string   `help:"Directory of exported items (dir source)." type:"path"`
	BaseURL  string   `help:"Data service base URL (http source)." name:"base-url"`
	Token    string   `help:"Data service token." env:"GALLERY_TOKEN"`
	Watch    bool     `help:"Reload items when files under --dir change."`
	Rows     int      `help:"Grid rows."`
	Cols     int      `help:"Grid columns."`
	Listen   string   `help:"Address to serve the host event websocket on."`
	Capture  string   `help:"Directory for PNG captures." type:"path"`
	Paused   bool     `help:"Start with playback paused."`
	Headless bool     `help:"Run without a local window."`
	TPS      int      `help:"Ticks per second." default:"30"`
	Items    []string `arg:"" optional:"" help:"Items to open, one panel each."`
}

// apply overrides config values with flags that were given.
func (c *CLI) apply(cfg *config.Config) {
	if c.Source != "" {
		cfg.Data.Source = c.Source
	}
	if c.Dir != "" {
		cfg.Data.Dir = c.Dir
		if c.Source == "" {
			cfg.Data.Source = config.SourceDir
		}
	}
	if c.BaseURL != "" {
		cfg.Data.BaseURL = c.BaseURL
	}
	if c.Token != "" {
		cfg.Data.Token = c.Token
	}
	if c.Watch {
		cfg.Data.Watch = true
	}
	if c.Rows > 0 {
		cfg.Gallery.Rows = c.Rows
	}
	if c.Cols > 0 {
		cfg.Gallery.Cols = c.Cols
	}
	if c.Listen != "" {
		cfg.Events.Listen = c.Listen
	}
	if c.Capture != "" {
		cfg.Viewer.CaptureDir = c.Capture
	}
	for _, item := range c.Items {
		cfg.Panels = append(cfg.Panels, config.PanelConfig{Item: item})
	}
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var cli CLI
	kong.Parse(&cli,
		kong.Name("gallery-viewer"),
		kong.Description("Synchronized multi-panel viewer for simulation time series."),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	source, err := a.buildSource()
	if err != nil {
		log.Fatalf("Failed to initialize data source: %v", err)
	}
	defer a.close()

	v := viewer.NewViewer(cfg.Viewer.Width, cfg.Viewer.Height)
	v.CaptureDir = cfg.Viewer.CaptureDir
	v.PlayInterval = cfg.Gallery.PlayInterval.Duration
	v.MaxSurfaces = cfg.Gallery.Rows * cfg.Gallery.Cols

	events := gallery.Fanout{gallery.LogBus{}}
	if cfg.Events.Listen != "" {
		a.hub = hostbus.NewHub(func(cmd hostbus.Command) { a.dispatch(ctx, cmd) })
		events = append(events, a.hub)
	}

	session := newSession(cfg)
	session.SetPaused(cli.Paused)
	a.gallery = gallery.New(session, source, v, events, galleryOptions(cfg.Gallery))
	a.gallery.SetGrid(cfg.Gallery.Rows, cfg.Gallery.Cols)
	a.gallery.SetTimeStep(cfg.Gallery.StartStep)
	v.Attach(a.gallery)

	if a.hub != nil {
		go a.serveEvents(ctx)
	}
	if a.dir != nil && cfg.Data.Watch {
		go func() {
			err := a.dir.Watch(ctx, watchDebounce, func(items []string) { a.refreshItems(ctx, items) })
			if err != nil && ctx.Err() == nil {
				log.Printf("[WATCH] Watcher stopped: %v", err)
			}
		}()
	}

	items := make([]string, 0, len(cfg.Panels))
	for _, p := range cfg.Panels {
		items = append(items, p.Item)
	}
	if len(items) == 0 {
		log.Println("No items configured; waiting for open commands.")
	}
	a.openPanels(ctx, items)

	v.Done = ctx.Done()
	ebiten.SetTPS(cli.TPS)
	if cli.Headless {
		log.Println("Running in HEADLESS mode (Rendering active).")
	} else {
		ebiten.SetWindowSize(cfg.Viewer.Width, cfg.Viewer.Height)
		ebiten.SetWindowTitle(cfg.Viewer.Title)
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
