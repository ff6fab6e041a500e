package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/sudorandom/sim-gallery/pkg/config"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/hostbus"
	"github.com/sudorandom/sim-gallery/pkg/sources"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

const watchDebounce = 500 * time.Millisecond

// app owns the long-lived pieces assembled from the config.
type app struct {
	cfg     *config.Config
	gallery *gallery.Gallery
	dir     *sources.Dir
	store   *utils.FrameStore
	hub     *hostbus.Hub
}

// buildSource returns the configured data source, wrapped in the disk cache
// when a cache directory is set.
func (a *app) buildSource() (gallery.DataSource, error) {
	d := a.cfg.Data
	var src gallery.DataSource
	switch d.Source {
	case config.SourceDir:
		a.dir = sources.NewDir(d.Dir)
		src = a.dir
	case config.SourceHTTP:
		src = sources.NewHTTP(d.BaseURL, d.ItemURL, d.Token, d.Timeout.Duration)
	default:
		return nil, fmt.Errorf("unknown data source %q", d.Source)
	}
	if d.CacheDir == "" || d.Source == config.SourceDir {
		return src, nil
	}
	store, err := utils.OpenFrameStore(d.CacheDir, d.CacheTTL.Duration)
	if err != nil {
		return nil, fmt.Errorf("open frame cache: %w", err)
	}
	a.store = store
	log.Printf("[GALLERY] Caching frames in %s (ttl %v)", d.CacheDir, d.CacheTTL.Duration)
	return sources.NewCached(src, store), nil
}

func galleryOptions(c config.GalleryConfig) gallery.Options {
	opts := gallery.DefaultOptions()
	opts.PrefetchWindow = c.PrefetchWindow
	opts.MaxStepsLoaded = c.MaxStepsLoaded
	opts.UnitScale = c.UnitScale
	opts.Gap = c.Gap
	return opts
}

// newSession applies the configured sync flags and fixed item ranges.
func newSession(cfg *config.Config) *gallery.Session {
	s := gallery.NewSession()
	s.Sync.SetZoomSync(cfg.Gallery.ZoomSync)
	s.Sync.SetCameraSync(cfg.Gallery.CameraSync)
	s.SetTimeSelectorMode(cfg.Gallery.TimeSelector)
	for _, p := range cfg.Panels {
		if len(p.YRange) == 2 {
			s.SetItemRange(p.Item, [2]float64{p.YRange[0], p.YRange[1]})
		}
	}
	return s
}

// openPanels adds one panel per item and loads them concurrently.
func (a *app) openPanels(ctx context.Context, items []string) {
	for _, item := range items {
		id := gallery.NewPanelID()
		if _, err := a.gallery.AddPanel(id); err != nil {
			log.Printf("[GALLERY] Cannot add panel for %s: %v", item, err)
			continue
		}
		go a.open(ctx, id, item)
	}
}

func (a *app) open(ctx context.Context, id gallery.PanelID, item string) {
	if err := a.gallery.Open(ctx, id, item); err != nil && !errors.Is(err, gallery.ErrStaleFetch) {
		log.Printf("[GALLERY] Open %s in panel %s failed: %v", item, id, err)
	}
}

// dispatch applies a command received from a host.
func (a *app) dispatch(ctx context.Context, cmd hostbus.Command) {
	g := a.gallery
	session := g.Session()
	switch cmd.Type {
	case hostbus.CommandOpen:
		if cmd.ItemID == "" {
			log.Printf("[HOSTBUS] open without an item")
			return
		}
		id := gallery.PanelID(cmd.PanelID)
		if id == "" {
			id = gallery.NewPanelID()
		}
		if _, err := g.Panel(id); errors.Is(err, gallery.ErrUnknownPanel) {
			if _, err := g.AddPanel(id); err != nil {
				log.Printf("[HOSTBUS] Cannot add panel %s: %v", id, err)
				return
			}
		}
		go a.open(ctx, id, cmd.ItemID)
	case hostbus.CommandStep:
		g.SetTimeStep(cmd.Step)
	case hostbus.CommandPause:
		session.SetPaused(cmd.On)
	case hostbus.CommandZoomSync:
		session.Sync.SetZoomSync(cmd.On)
	case hostbus.CommandCameraSync:
		session.Sync.SetCameraSync(cmd.On)
	case hostbus.CommandTimePick:
		session.SetTimeSelectorMode(cmd.On)
	default:
		log.Printf("[HOSTBUS] Unknown command %q", cmd.Type)
	}
}

// refreshItems re-reads the step lists of panels showing a changed item.
func (a *app) refreshItems(ctx context.Context, items []string) {
	for _, p := range a.gallery.Panels() {
		if !slices.Contains(items, p.ItemID()) {
			continue
		}
		if err := a.gallery.RefreshSteps(ctx, p.ID()); err != nil {
			log.Printf("[WATCH] Refresh of panel %s failed: %v", p.ID(), err)
			continue
		}
		if step, ok := p.CurrentStep(); ok {
			if _, err := a.gallery.EnsureStepLoaded(ctx, p.ID(), step); err != nil && !errors.Is(err, gallery.ErrStaleFetch) {
				log.Printf("[WATCH] Load of panel %s step %d failed: %v", p.ID(), step, err)
			}
		}
	}
}

func (a *app) serveEvents(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Events.Path, a.hub)
	srv := &http.Server{Addr: a.cfg.Events.Listen, Handler: mux}
	context.AfterFunc(ctx, func() { _ = srv.Close() })
	log.Printf("[HOSTBUS] Serving events on ws://%s%s", a.cfg.Events.Listen, a.cfg.Events.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[HOSTBUS] Server error: %v", err)
	}
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[GALLERY] Error closing frame cache: %v", err)
	}
}
