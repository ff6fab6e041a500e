package gallery

import (
	"errors"
	"log"
	"strings"
)

// isTimeAxis reports whether an axis label such as "Time (ms)" plots time.
func isTimeAxis(label string) bool {
	fields := strings.Fields(label)
	return len(fields) > 0 && strings.ToLower(fields[0]) == "time"
}

// BoxSelectScale converts a box drawn in normalized display coordinates over
// a mesh with the given visible bounds into a parallel camera scale.
func BoxSelectScale(sel BoxSelection) (float64, bool) {
	x := (sel.Bounds[1] - sel.Bounds[0]) / 2
	y := (sel.Bounds[3] - sel.Bounds[2]) / 2
	w := (sel.X2 - sel.X1) / 2
	h := (sel.Y2 - sel.Y1) / 2
	if h == 0 || y == 0 || w == 0 {
		return 0, false
	}
	r := w / h
	if r >= x/y {
		return y + 1, true
	}
	return x/r + 1, true
}

func (g *Gallery) handlersFor(p *Panel) InteractionHandlers {
	return InteractionHandlers{
		OnLeftButtonPress:   func(ev PointerEvent) { g.leftButtonPress(p, ev) },
		OnLeftButtonRelease: func(ev PointerEvent) { g.leftButtonRelease(p, ev) },
		OnBoxSelect:         func(sel BoxSelection) { g.boxSelect(p, sel) },
		OnChartClick:        func(x float64) { g.chartClick(p, x) },
		OnChartRelayout: func(zoom *ZoomRange) {
			if err := g.ApplyChartZoom(p.id, zoom); err != nil && !errors.Is(err, ErrSyncConflict) {
				log.Printf("[GALLERY] Panel %s: zoom failed: %v", p.id, err)
			}
		},
		OnDoubleClick: func() { g.DoubleClick(p.id) },
	}
}

func (g *Gallery) leftButtonPress(p *Panel, ev PointerEvent) {
	p.mu.Lock()
	p.timeIndex = -1
	p.inside = ev.Inside
	p.mu.Unlock()
	if !ev.Inside {
		return
	}

	pt, ok := p.surface.PickAtPoint(ev.X, ev.Y)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startPick = &pt
	if g.session.TimeSelectorMode() && isTimeAxis(p.xAxis) {
		if idx, ok := ResolveClosestIndex(p.times, pt[0], g.opts.UnitScale); ok {
			p.timeIndex = idx
		}
	}
}

// leftButtonRelease pans the camera to the midpoint of a drag.
func (g *Gallery) leftButtonRelease(p *Panel, ev PointerEvent) {
	p.mu.Lock()
	p.inside = ev.Inside
	start := p.startPick
	p.mu.Unlock()
	if !ev.Inside && !g.session.Sync.CameraSync() {
		return
	}
	if start == nil {
		return
	}
	pt, ok := p.surface.PickAtPoint(ev.X, ev.Y)
	if !ok || pt == *start {
		return
	}

	mid := [3]float64{
		(pt[0]-start[0])/2 + start[0],
		(pt[1]-start[1])/2 + start[1],
		0,
	}
	p.mu.Lock()
	p.camera.FocalPoint = &mid
	cam := p.camera.Clone()
	p.mu.Unlock()
	g.session.Sync.PublishCamera(p.id, cam)
	g.queue.MarkDirty(p.id)
}

func (g *Gallery) boxSelect(p *Panel, sel BoxSelection) {
	p.mu.Lock()
	inside := p.inside
	p.mu.Unlock()
	if !inside && !g.session.Sync.CameraSync() {
		return
	}
	scale, ok := BoxSelectScale(sel)
	if !ok {
		return
	}
	p.mu.Lock()
	p.camera.Scale = scale
	cam := p.camera.Clone()
	p.mu.Unlock()
	g.session.Sync.PublishCamera(p.id, cam)
	g.queue.MarkDirty(p.id)
}

func (g *Gallery) chartClick(p *Panel, x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeIndex = -1
	if !g.session.TimeSelectorMode() || !isTimeAxis(p.xAxis) {
		return
	}
	if idx, ok := ResolveClosestIndex(p.times, x, g.opts.UnitScale); ok {
		p.timeIndex = idx
	}
}

// ApplyChartZoom handles a zoom gesture on a chart panel. A fixed y range set
// for the item replaces the gesture's y range. When another panel owns the
// axis group the request is dropped and ErrSyncConflict returned.
func (g *Gallery) ApplyChartZoom(id PanelID, zoom *ZoomRange) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	zoom = zoom.Clone()
	if zoom != nil {
		if r, ok := g.session.ItemRange(p.ItemID()); ok {
			zoom.YAxis = r
		}
	}
	if err := g.session.Sync.PublishZoom(id, zoom, p.AxisLabel()); err != nil {
		return err
	}
	p.mu.Lock()
	p.zoom = zoom
	p.mu.Unlock()
	g.queue.MarkDirty(id)
	return nil
}

// DoubleClick selects the time step picked by the preceding click and pauses
// the gallery. Without a pick it resets the panel's zoom and camera.
func (g *Gallery) DoubleClick(id PanelID) {
	p, err := g.Panel(id)
	if err != nil {
		return
	}
	p.mu.Lock()
	idx := p.timeIndex
	var step int
	if idx >= 0 && idx < len(p.steps) {
		step = p.steps[idx]
	} else {
		idx = -1
	}
	p.timeIndex = -1
	p.mu.Unlock()

	if idx >= 0 {
		g.SetTimeStep(step)
		g.session.SetPaused(true)
		return
	}
	g.ResetView(id)
}

// ResetView returns the panel to autorange and the default camera. With sync
// enabled the reset is shared with the other panels.
func (g *Gallery) ResetView(id PanelID) {
	p, err := g.Panel(id)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.zoom = nil
	p.camera = CameraState{}
	axis := p.xAxis
	p.mu.Unlock()

	if g.session.Sync.ZoomSync() {
		g.session.Sync.ClearZoom(axis)
	} else {
		g.session.Sync.ReleaseOrigin(id)
	}
	g.session.Sync.ResetCamera()
	g.queue.MarkDirty(id)
}
