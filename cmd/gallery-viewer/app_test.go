package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sudorandom/sim-gallery/pkg/config"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/hostbus"
	"github.com/sudorandom/sim-gallery/pkg/sources"
	"github.com/sudorandom/sim-gallery/pkg/viewer"
)

const chartDoc = `{"data":[{"x":[0,1,2],"y":[1,2,3]}],"layout":{"xaxis":{"title":"Time (ms)"}}}`

func writeStep(t *testing.T, root, item string, step int) {
	t.Helper()
	dir := filepath.Join(root, item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(dir, strconv.Itoa(step)+".json")
	if err := os.WriteFile(name, []byte(chartDoc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestApp(t *testing.T) (*app, string) {
	t.Helper()
	root := t.TempDir()
	writeStep(t, root, "a", 1)
	writeStep(t, root, "a", 2)

	cfg := config.Default()
	cfg.Data.Source = config.SourceDir
	cfg.Data.Dir = root
	a := &app{cfg: cfg}
	src, err := a.buildSource()
	if err != nil {
		t.Fatalf("buildSource failed: %v", err)
	}
	if _, ok := src.(*sources.Dir); !ok {
		t.Fatalf("source = %T, want *sources.Dir", src)
	}
	v := viewer.NewViewer(200, 100)
	a.gallery = gallery.New(newSession(cfg), src, v, gallery.EventFunc(func(string, any) {}), galleryOptions(cfg.Gallery))
	v.Attach(a.gallery)
	return a, root
}

// waitReady waits until the panel shows a frame and its whole step range has
// been observed by the session.
func waitReady(t *testing.T, g *gallery.Gallery, id gallery.PanelID, maxStep int) *gallery.Panel {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := g.Panel(id)
		if err == nil && p.State() == gallery.StateReady && g.Session().MaxStep() >= maxStep {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("panel %s never became ready", id)
	return nil
}

func TestDispatchCommands(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	g := a.gallery

	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandOpen, PanelID: "p1", ItemID: "a"})
	p := waitReady(t, g, "p1", 2)
	if p.ItemID() != "a" {
		t.Errorf("ItemID = %q, want a", p.ItemID())
	}

	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandStep, Step: 2})
	if got := g.Session().CurrentStep(); got != 2 {
		t.Errorf("CurrentStep = %d, want 2", got)
	}
	if step, _ := p.CurrentStep(); step != 2 {
		t.Errorf("panel step = %d, want 2", step)
	}

	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandPause, On: true})
	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandZoomSync, On: true})
	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandCameraSync, On: true})
	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandTimePick, On: true})
	s := g.Session()
	if !s.Paused() || !s.Sync.ZoomSync() || !s.Sync.CameraSync() || !s.TimeSelectorMode() {
		t.Errorf("toggles not applied: paused=%v zoom=%v camera=%v time=%v",
			s.Paused(), s.Sync.ZoomSync(), s.Sync.CameraSync(), s.TimeSelectorMode())
	}

	a.dispatch(ctx, hostbus.Command{Type: hostbus.CommandOpen})
	a.dispatch(ctx, hostbus.Command{Type: "bogus"})
	if n := len(g.Panels()); n != 1 {
		t.Errorf("panels = %d, want 1", n)
	}
}

func TestRefreshItemsPicksUpNewSteps(t *testing.T) {
	a, root := newTestApp(t)
	ctx := context.Background()
	a.openPanels(ctx, []string{"a"})
	panels := a.gallery.Panels()
	if len(panels) != 1 {
		t.Fatalf("panels = %d, want 1", len(panels))
	}
	p := waitReady(t, a.gallery, panels[0].ID(), 2)

	writeStep(t, root, "a", 3)
	a.refreshItems(ctx, []string{"a"})
	if diff := cmp.Diff([]int{1, 2, 3}, p.Steps()); diff != "" {
		t.Errorf("steps after refresh (-want +got):\n%s", diff)
	}
	if got := a.gallery.Session().MaxStep(); got != 3 {
		t.Errorf("MaxStep = %d, want 3", got)
	}
}

func TestBuildSourceWithCache(t *testing.T) {
	cfg := config.Default()
	cfg.Data.CacheDir = t.TempDir()
	a := &app{cfg: cfg}
	src, err := a.buildSource()
	if err != nil {
		t.Fatalf("buildSource failed: %v", err)
	}
	defer a.close()
	if _, ok := src.(*sources.Cached); !ok {
		t.Errorf("source = %T, want *sources.Cached", src)
	}
}

func TestCLIApply(t *testing.T) {
	cfg := config.Default()
	cli := CLI{Dir: "/data", Rows: 3, Items: []string{"x", "y"}, Listen: ":9000"}
	cli.apply(cfg)
	if cfg.Data.Source != config.SourceDir || cfg.Data.Dir != "/data" {
		t.Errorf("data = %+v", cfg.Data)
	}
	if cfg.Gallery.Rows != 3 || cfg.Gallery.Cols != 2 {
		t.Errorf("grid = %dx%d, want 3x2", cfg.Gallery.Rows, cfg.Gallery.Cols)
	}
	if len(cfg.Panels) != 2 || cfg.Panels[1].Item != "y" {
		t.Errorf("panels = %+v", cfg.Panels)
	}
	if cfg.Events.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Events.Listen)
	}
}

func TestNewSessionItemRanges(t *testing.T) {
	cfg := config.Default()
	cfg.Gallery.ZoomSync = true
	cfg.Panels = []config.PanelConfig{{Item: "a", YRange: []float64{-1, 1}}, {Item: "b"}}
	s := newSession(cfg)
	if r, ok := s.ItemRange("a"); !ok || r != [2]float64{-1, 1} {
		t.Errorf("ItemRange(a) = %v, %v", r, ok)
	}
	if _, ok := s.ItemRange("b"); ok {
		t.Errorf("item b should have no fixed range")
	}
	if !s.Sync.ZoomSync() {
		t.Errorf("zoom sync not applied")
	}
}
