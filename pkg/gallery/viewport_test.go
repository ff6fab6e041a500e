package gallery

import (
	"math"
	"testing"
)

func almostEqual(a, b Viewport) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestComputeViewport(t *testing.T) {
	container := Rect{X: 0, Y: 0, Width: 1000, Height: 1000}
	panel := Rect{X: 50, Y: 100, Width: 500, Height: 250}

	vp, ok := ComputeViewport(panel, container)
	if !ok {
		t.Fatalf("ComputeViewport returned !ok")
	}
	want := Viewport{0.05, 0.65, 0.55, 0.9}
	if !almostEqual(vp, want) {
		t.Errorf("ComputeViewport = %v, want %v", vp, want)
	}

	offset := Rect{X: 100, Y: 100, Width: 1000, Height: 1000}
	moved := Rect{X: 150, Y: 200, Width: 500, Height: 250}
	if vp2, _ := ComputeViewport(moved, offset); !almostEqual(vp2, want) {
		t.Errorf("offset container: got %v, want %v", vp2, want)
	}

	if _, ok := ComputeViewport(panel, Rect{}); ok {
		t.Errorf("expected !ok for an empty container")
	}
}

func TestGridCells(t *testing.T) {
	cells := GridCells(Rect{Width: 210, Height: 100}, 1, 2, 10)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}
	if cells[0] != (Rect{X: 0, Y: 0, Width: 100, Height: 100}) {
		t.Errorf("cell 0 = %+v", cells[0])
	}
	if cells[1] != (Rect{X: 110, Y: 0, Width: 100, Height: 100}) {
		t.Errorf("cell 1 = %+v", cells[1])
	}
	if GridCells(Rect{Width: 10, Height: 10}, 0, 2, 0) != nil {
		t.Errorf("expected no cells for zero rows")
	}
}

func TestLayoutEngineRelayout(t *testing.T) {
	l := NewLayoutEngine(2, 2, 0)
	l.SetContainer(Rect{Width: 200, Height: 200})
	order := []PanelID{"a", "b", "c"}

	first := l.Relayout(order)
	if len(first) != 3 {
		t.Fatalf("first pass changed %d viewports, want 3", len(first))
	}
	if !almostEqual(first["a"], Viewport{0, 0.5, 0.5, 1}) {
		t.Errorf("a = %v", first["a"])
	}
	if !almostEqual(first["c"], Viewport{0, 0, 0.5, 0.5}) {
		t.Errorf("c = %v", first["c"])
	}

	if again := l.Relayout(order); len(again) != 0 {
		t.Errorf("second pass over the same geometry changed %v", again)
	}

	l.SetMeasured("b", Rect{X: 100, Y: 0, Width: 100, Height: 200})
	changed := l.Relayout(order)
	if len(changed) != 1 {
		t.Fatalf("measured bounds changed %d viewports, want 1", len(changed))
	}
	if !almostEqual(changed["b"], Viewport{0.5, 0, 1, 1}) {
		t.Errorf("b = %v", changed["b"])
	}

	l.SetGrid(1, 3)
	if changed := l.Relayout(order); len(changed) != 2 {
		t.Errorf("grid change updated %d viewports, want 2", len(changed))
	}
}
