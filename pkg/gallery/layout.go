package gallery

import "sync"

// LayoutEngine tracks the panel grid geometry and produces per-panel
// viewports. Only viewports that changed since the last pass are returned, so
// repeated passes over the same geometry are no-ops.
type LayoutEngine struct {
	mu        sync.Mutex
	container Rect
	rows      int
	cols      int
	gap       float64
	measured  map[PanelID]Rect
	applied   map[PanelID]Viewport
}

func NewLayoutEngine(rows, cols int, gap float64) *LayoutEngine {
	return &LayoutEngine{
		rows:     rows,
		cols:     cols,
		gap:      gap,
		measured: make(map[PanelID]Rect),
		applied:  make(map[PanelID]Viewport),
	}
}

func (l *LayoutEngine) SetGrid(rows, cols int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows, l.cols = rows, cols
}

func (l *LayoutEngine) Grid() (rows, cols int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows, l.cols
}

func (l *LayoutEngine) SetContainer(r Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.container = r
}

func (l *LayoutEngine) Container() Rect {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.container
}

// SetMeasured records host-measured bounds for a panel, overriding its grid
// cell.
func (l *LayoutEngine) SetMeasured(id PanelID, r Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.measured[id] = r
}

func (l *LayoutEngine) Forget(id PanelID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.measured, id)
	delete(l.applied, id)
}

// Bounds returns the screen rectangle assigned to each panel in order.
func (l *LayoutEngine) Bounds(order []PanelID) map[PanelID]Rect {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.boundsLocked(order)
}

func (l *LayoutEngine) boundsLocked(order []PanelID) map[PanelID]Rect {
	cells := GridCells(l.container, l.rows, l.cols, l.gap)
	out := make(map[PanelID]Rect, len(order))
	for i, id := range order {
		if r, ok := l.measured[id]; ok {
			out[id] = r
			continue
		}
		if i < len(cells) {
			out[id] = cells[i]
		}
	}
	return out
}

// Relayout computes viewports for the panels in order and returns the ones
// that differ from the previous pass.
func (l *LayoutEngine) Relayout(order []PanelID) map[PanelID]Viewport {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := make(map[PanelID]Viewport)
	for id, r := range l.boundsLocked(order) {
		vp, ok := ComputeViewport(r, l.container)
		if !ok {
			continue
		}
		if prev, seen := l.applied[id]; seen && prev == vp {
			continue
		}
		l.applied[id] = vp
		changed[id] = vp
	}
	return changed
}
