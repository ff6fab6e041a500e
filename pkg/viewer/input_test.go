package viewer

import (
	"errors"
	"testing"
	"time"

	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
)

type recorded struct {
	presses  []gallery.PointerEvent
	releases []gallery.PointerEvent
	boxes    []gallery.BoxSelection
	clicks   []float64
	zooms    []*gallery.ZoomRange
	doubles  int
}

func (r *recorded) handlers() gallery.InteractionHandlers {
	return gallery.InteractionHandlers{
		OnLeftButtonPress:   func(ev gallery.PointerEvent) { r.presses = append(r.presses, ev) },
		OnLeftButtonRelease: func(ev gallery.PointerEvent) { r.releases = append(r.releases, ev) },
		OnBoxSelect:         func(sel gallery.BoxSelection) { r.boxes = append(r.boxes, sel) },
		OnChartClick:        func(x float64) { r.clicks = append(r.clicks, x) },
		OnChartRelayout:     func(z *gallery.ZoomRange) { r.zooms = append(r.zooms, z) },
		OnDoubleClick:       func() { r.doubles++ },
	}
}

// twoPanels places surfaces a (left half) and b (right half) in a 200x100
// window.
func twoPanels(t *testing.T) (*Viewer, *Surface, *Surface, *recorded, *recorded) {
	t.Helper()
	v := &Viewer{Width: 200, Height: 100}
	sa, err := v.CreateSurface("a")
	if err != nil {
		t.Fatalf("CreateSurface failed: %v", err)
	}
	sb, _ := v.CreateSurface("b")
	a, b := sa.(*Surface), sb.(*Surface)
	a.SetViewport(gallery.Viewport{0, 0, 0.5, 1})
	b.SetViewport(gallery.Viewport{0.5, 0, 1, 1})
	a.place(200, 100)
	b.place(200, 100)
	ra, rb := &recorded{}, &recorded{}
	a.Bind(ra.handlers())
	b.Bind(rb.handlers())
	return v, a, b, ra, rb
}

func meshSquare() *frames.MeshFrame {
	return &frames.MeshFrame{
		Nodes:     [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Triangles: [][3]int32{{0, 1, 2}, {0, 2, 3}},
		Values:    []float64{0, 1, 2, 3},
	}
}

func TestCreateSurfaceCapacity(t *testing.T) {
	v := &Viewer{MaxSurfaces: 1}
	s, err := v.CreateSurface("a")
	if err != nil {
		t.Fatalf("first surface failed: %v", err)
	}
	if _, err := v.CreateSurface("b"); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}
	v.RemoveSurface(s)
	if len(v.Surfaces()) != 0 {
		t.Errorf("surface not removed")
	}
	if _, err := v.CreateSurface("b"); err != nil {
		t.Errorf("capacity not released: %v", err)
	}
}

func TestPressReachesEveryPanel(t *testing.T) {
	v, _, _, ra, rb := twoPanels(t)
	v.press(20, 50, false)
	if len(ra.presses) != 1 || !ra.presses[0].Inside {
		t.Errorf("panel a presses = %+v, want one inside", ra.presses)
	}
	if len(rb.presses) != 1 || rb.presses[0].Inside {
		t.Errorf("panel b presses = %+v, want one outside", rb.presses)
	}
}

func TestClickAndDoubleClick(t *testing.T) {
	v, _, _, ra, rb := twoPanels(t)
	now := time.Now()

	v.press(20, 50, false)
	v.release(21, 50, now)
	if len(ra.releases) != 1 || !ra.releases[0].Inside {
		t.Fatalf("releases = %+v", ra.releases)
	}
	if ra.doubles != 0 {
		t.Fatalf("single click reported as double")
	}

	v.press(20, 50, false)
	v.release(20, 50, now.Add(100*time.Millisecond))
	if ra.doubles != 1 {
		t.Errorf("doubles = %d, want 1", ra.doubles)
	}
	if rb.doubles != 0 || len(rb.releases) != 0 {
		t.Errorf("panel b received release or double click")
	}

	v.press(20, 50, false)
	v.release(20, 50, now.Add(time.Second))
	if ra.doubles != 1 {
		t.Errorf("slow click counted as double")
	}
}

func TestDragReleaseOutsidePanel(t *testing.T) {
	v, _, _, ra, _ := twoPanels(t)
	v.press(20, 50, false)
	v.release(150, 50, time.Now())
	if len(ra.releases) != 1 || ra.releases[0].Inside {
		t.Errorf("releases = %+v, want one outside", ra.releases)
	}
}

func TestShiftDragBoxSelects(t *testing.T) {
	v, a, _, ra, rb := twoPanels(t)
	m := meshSquare()
	a.SetGeometry(m)
	a.SetScalarField(m.Values, m.ScalarRange())

	v.press(10, 10, true)
	v.release(60, 40, time.Now())

	if len(ra.presses) != 0 || len(rb.presses) != 0 {
		t.Errorf("box drag should not send presses")
	}
	if len(ra.boxes) != 1 {
		t.Fatalf("boxes = %d, want 1", len(ra.boxes))
	}
	sel := ra.boxes[0]
	if sel.X1 != 10 || sel.X2 != 60 || sel.Y1 != 60 || sel.Y2 != 90 {
		t.Errorf("selection = %+v", sel)
	}
	if sel.Bounds[1] <= sel.Bounds[0] || sel.Bounds[3] <= sel.Bounds[2] {
		t.Errorf("bounds not ordered: %v", sel.Bounds)
	}
}

func TestChartDragZoomsAndClickPicks(t *testing.T) {
	v, a, _, ra, _ := twoPanels(t)
	a.ShowChart(testChart(), gallery.ChartView{})
	axes, ok := a.chartAxes()
	if !ok {
		t.Fatal("chart axes unavailable")
	}

	x0, y0 := axes.ToScreen(2, -1)
	x1, y1 := axes.ToScreen(6, 1)
	v.press(x0, y0, false)
	v.release(x1, y1, time.Now())
	if len(ra.zooms) != 1 {
		t.Fatalf("zooms = %d, want 1", len(ra.zooms))
	}
	z := ra.zooms[0]
	if !near(z.XAxis[0], 2) || !near(z.XAxis[1], 6) || !near(z.YAxis[0], -1) || !near(z.YAxis[1], 1) {
		t.Errorf("zoom = %+v", z)
	}

	cx, cy := axes.ToScreen(4, 0)
	v.press(cx, cy, false)
	v.release(cx, cy, time.Now())
	if len(ra.clicks) != 1 || !near(ra.clicks[0], 4) {
		t.Errorf("clicks = %v, want [4]", ra.clicks)
	}
	if len(ra.releases) != 0 {
		t.Errorf("chart gestures must not pan")
	}
}

func TestPickAtPoint(t *testing.T) {
	_, a, _, _, _ := twoPanels(t)
	if _, ok := a.PickAtPoint(50, 50); ok {
		t.Errorf("pick on empty surface should fail")
	}
	a.SetGeometry(meshSquare())
	pt, ok := a.PickAtPoint(50, 50)
	if !ok {
		t.Fatal("pick at panel center failed")
	}
	if !near(pt[0], 0.5) || !near(pt[1], 0.5) {
		t.Errorf("center pick = %v, want mesh center", pt)
	}
	if _, ok := a.PickAtPoint(150, 50); ok {
		t.Errorf("pick outside the panel should fail")
	}
}

func TestMeshVerticesColors(t *testing.T) {
	_, a, _, _, _ := twoPanels(t)
	m := meshSquare()
	m.Triangles = append(m.Triangles, [3]int32{0, 1, 9})
	a.SetGeometry(m)
	a.SetScalarField(m.Values, [2]float64{0, 3})

	batches := meshVertices(a.state())
	if len(batches) != 1 || len(batches[0]) != 6 {
		t.Fatalf("batches = %d, want one with 6 vertices (invalid triangle dropped)", len(batches))
	}
	first := batches[0][0]
	if first.ColorB == 0 || first.ColorR != 0 {
		t.Errorf("lowest value should be blue, got %+v", first)
	}
}
