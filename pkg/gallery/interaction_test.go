package gallery

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBoxSelectScale(t *testing.T) {
	bounds := [4]float64{0, 4, 0, 2}
	tests := []struct {
		name string
		sel  BoxSelection
		want float64
		ok   bool
	}{
		{"wide box", BoxSelection{X1: 0, X2: 1, Y1: 0, Y2: 0.25, Bounds: bounds}, 2, true},
		{"square box", BoxSelection{X1: 0, X2: 0.5, Y1: 0, Y2: 0.5, Bounds: bounds}, 3, true},
		{"flat box", BoxSelection{X1: 0, X2: 1, Y1: 0.5, Y2: 0.5, Bounds: bounds}, 0, false},
		{"flat bounds", BoxSelection{X1: 0, X2: 1, Y1: 0, Y2: 1, Bounds: [4]float64{0, 4, 1, 1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BoxSelectScale(tt.sel)
			if got != tt.want || ok != tt.ok {
				t.Errorf("BoxSelectScale = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDoubleClickSelectsPickedStep(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.src.add("item", []int{10, 20, 30, 40}, []float64{0, 1, 2.5, 4}, chartPayload("Time (ms)"))
	p := h.panel(t, "p")
	h.load(t, "p", "item")
	h.g.Tick()
	h.g.Session().SetTimeSelectorMode(true)

	s := h.renderer.surface("p")
	s.handlers.OnChartClick(3000)
	if got := p.TimeIndex(); got != 2 {
		t.Fatalf("TimeIndex = %d, want 2", got)
	}
	s.handlers.OnDoubleClick()

	if got := h.g.Session().CurrentStep(); got != 30 {
		t.Errorf("CurrentStep = %d, want 30", got)
	}
	if !h.g.Session().Paused() {
		t.Errorf("gallery not paused after selecting a step")
	}
	if got := p.TimeIndex(); got != -1 {
		t.Errorf("TimeIndex = %d after selection, want -1", got)
	}
	if cur, _ := p.CurrentStep(); cur != 30 {
		t.Errorf("panel step = %d, want 30", cur)
	}
}

func TestChartClickIgnoredOutsideTimeSelectorMode(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.src.add("item", []int{10, 20}, []float64{0, 1}, chartPayload("Time (ms)"))
	p := h.panel(t, "p")
	h.load(t, "p", "item")
	h.g.Tick()

	h.renderer.surface("p").handlers.OnChartClick(1000)
	if got := p.TimeIndex(); got != -1 {
		t.Errorf("TimeIndex = %d, want -1", got)
	}
}

func TestChartZoomSync(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.g.Session().Sync.SetZoomSync(true)
	h.src.add("a", []int{1}, []float64{1}, chartPayload("time"))
	h.src.add("b", []int{1}, []float64{1}, chartPayload("time"))
	pa := h.panel(t, "a")
	pb := h.panel(t, "b")
	h.load(t, "a", "a")
	h.load(t, "b", "b")
	h.g.Tick()
	h.g.Session().SetItemRange("a", [2]float64{-1, 1})

	if err := h.g.ApplyChartZoom("a", &ZoomRange{XAxis: [2]float64{0, 500}, YAxis: [2]float64{5, 6}}); err != nil {
		t.Fatalf("ApplyChartZoom failed: %v", err)
	}
	want := &ZoomRange{XAxis: [2]float64{0, 500}, YAxis: [2]float64{-1, 1}}
	if diff := cmp.Diff(want, pa.Zoom()); diff != "" {
		t.Errorf("origin zoom (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, pb.Zoom()); diff != "" {
		t.Errorf("follower zoom (-want +got):\n%s", diff)
	}

	err := h.g.ApplyChartZoom("b", &ZoomRange{XAxis: [2]float64{7, 8}})
	if !errors.Is(err, ErrSyncConflict) {
		t.Fatalf("expected ErrSyncConflict, got %v", err)
	}
	if diff := cmp.Diff(want, pb.Zoom()); diff != "" {
		t.Errorf("dropped request changed follower zoom:\n%s", diff)
	}

	h.g.Tick()
	charts := h.renderer.surface("b").charts
	if last := charts[len(charts)-1]; last.Annotation == "" {
		t.Errorf("zoomed chart rendered without annotation")
	}

	h.renderer.surface("b").handlers.OnDoubleClick()
	if pa.Zoom() != nil || pb.Zoom() != nil {
		t.Errorf("double click did not reset synced zoom")
	}
	if g := h.g.Session().Sync.Group("time"); g.Origin != "" {
		t.Errorf("origin %q survived reset", g.Origin)
	}
}

func TestLatePanelAdoptsGroupZoom(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.g.Session().Sync.SetZoomSync(true)
	h.src.add("a", []int{1}, []float64{1}, chartPayload("time"))
	h.src.add("c", []int{1}, []float64{1}, chartPayload("time"))
	h.panel(t, "a")
	h.load(t, "a", "a")
	h.g.Tick()

	zoom := &ZoomRange{XAxis: [2]float64{0, 500}, YAxis: [2]float64{5, 6}}
	if err := h.g.ApplyChartZoom("a", zoom); err != nil {
		t.Fatalf("ApplyChartZoom failed: %v", err)
	}

	pc := h.panel(t, "c")
	h.load(t, "c", "c")
	h.g.Tick()
	if diff := cmp.Diff(zoom, pc.Zoom()); diff != "" {
		t.Errorf("late panel zoom (-want +got):\n%s", diff)
	}
	charts := h.renderer.surface("c").charts
	if len(charts) == 0 {
		t.Fatal("late panel never rendered")
	}
	if diff := cmp.Diff(zoom, charts[len(charts)-1].Zoom); diff != "" {
		t.Errorf("rendered zoom (-want +got):\n%s", diff)
	}
}

func TestEnablingZoomSyncSharesGroupZoom(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.src.add("a", []int{1}, []float64{1}, chartPayload("time"))
	h.src.add("b", []int{1}, []float64{1}, chartPayload("time"))
	h.panel(t, "a")
	pb := h.panel(t, "b")
	h.load(t, "a", "a")
	h.load(t, "b", "b")
	h.g.Tick()

	zoom := &ZoomRange{XAxis: [2]float64{100, 900}, YAxis: [2]float64{1, 3}}
	if err := h.g.ApplyChartZoom("a", zoom); err != nil {
		t.Fatalf("ApplyChartZoom failed: %v", err)
	}
	if pb.Zoom() != nil {
		t.Fatalf("zoom shared with sync off")
	}

	h.g.Session().Sync.SetZoomSync(true)
	h.g.Tick()
	if diff := cmp.Diff(zoom, pb.Zoom()); diff != "" {
		t.Errorf("follower zoom after enabling sync (-want +got):\n%s", diff)
	}
	charts := h.renderer.surface("b").charts
	if diff := cmp.Diff(zoom, charts[len(charts)-1].Zoom); diff != "" {
		t.Errorf("rendered zoom (-want +got):\n%s", diff)
	}
}

func TestDragPanSharesFocalPoint(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.g.Session().Sync.SetCameraSync(true)
	pa := h.panel(t, "a")
	pb := h.panel(t, "b")
	s := h.renderer.surface("a")

	s.handlers.OnLeftButtonPress(PointerEvent{X: 0, Y: 0, Inside: true})
	s.handlers.OnLeftButtonRelease(PointerEvent{X: 2, Y: 4, Inside: true})

	want := [3]float64{1, 2, 0}
	for _, p := range []*Panel{pa, pb} {
		fp := p.Camera().FocalPoint
		if fp == nil || *fp != want {
			t.Errorf("panel %s focal point = %v, want %v", p.ID(), fp, want)
		}
	}

	s.handlers.OnBoxSelect(BoxSelection{X1: 0, X2: 1, Y1: 0, Y2: 0.25, Bounds: [4]float64{0, 4, 0, 2}})
	if got := pb.Camera().Scale; got != 2 {
		t.Errorf("shared scale = %v, want 2", got)
	}

	s.handlers.OnDoubleClick()
	if !pa.Camera().IsReset() || !pb.Camera().IsReset() {
		t.Errorf("double click did not reset cameras")
	}
}

func TestClickWithoutDragKeepsCamera(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	p := h.panel(t, "a")
	s := h.renderer.surface("a")

	s.handlers.OnLeftButtonPress(PointerEvent{X: 3, Y: 3, Inside: true})
	s.handlers.OnLeftButtonRelease(PointerEvent{X: 3, Y: 3, Inside: true})
	if !p.Camera().IsReset() {
		t.Errorf("single click moved the camera to %+v", p.Camera())
	}

	s.handlers.OnLeftButtonPress(PointerEvent{X: 0, Y: 0, Inside: false})
	s.handlers.OnBoxSelect(BoxSelection{X1: 0, X2: 1, Y1: 0, Y2: 1, Bounds: [4]float64{0, 1, 0, 1}})
	if p.Camera().Scale != 0 {
		t.Errorf("box select outside the panel changed its scale")
	}
}
