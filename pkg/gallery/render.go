package gallery

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/sudorandom/sim-gallery/pkg/frames"
)

// RenderQueue collects panels whose cache, zoom or camera changed. The
// rendering backend drains it once per frame tick, so a burst of updates to
// one panel produces a single render.
type RenderQueue struct {
	mu      sync.Mutex
	pending map[PanelID]struct{}
	order   []PanelID
}

func NewRenderQueue() *RenderQueue {
	return &RenderQueue{pending: make(map[PanelID]struct{})}
}

func (q *RenderQueue) MarkDirty(id PanelID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[id]; ok {
		return
	}
	q.pending[id] = struct{}{}
	q.order = append(q.order, id)
}

// Drain returns the dirty panels in the order they were first marked.
func (q *RenderQueue) Drain() []PanelID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.order
	q.order = nil
	q.pending = make(map[PanelID]struct{})
	return out
}

func (q *RenderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

type renderPlan struct {
	frame       *frames.Frame
	prevMesh    *frames.MeshFrame
	firstMesh   bool
	releaseMesh bool
	view        ChartView
	camera      CameraState
}

// planRender picks the frame for step and updates the panel's bookkeeping of
// what is on screen. The surface calls happen outside the panel lock.
func (p *Panel) planRender(step int, itemRange *[2]float64) (renderPlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.frameForLocked(step)
	if f == nil {
		return renderPlan{}, false
	}

	plan := renderPlan{frame: f, camera: p.camera.Clone()}
	switch f.Kind {
	case frames.KindChart:
		plan.view = ChartView{Zoom: p.zoom.Clone(), YRange: itemRange}
		plan.view.Annotation = zoomAnnotation(f.Chart, p.zoom, itemRange)
		if p.meshRenderer {
			plan.releaseMesh = true
			p.meshRenderer = false
		}
		p.shownMesh = nil
	case frames.KindMesh:
		plan.prevMesh = p.shownMesh
		if !p.meshRenderer {
			plan.firstMesh = true
			p.meshRenderer = true
		}
		p.shownMesh = f.Mesh
	}
	p.displayed = f
	return plan, true
}

// frameForLocked returns the frame to show for step, falling back to the only
// cached frame. It learns the panel's x axis label from the frame.
func (p *Panel) frameForLocked(step int) *frames.Frame {
	f, ok := p.cache[step]
	if !ok && len(p.cache) == 1 {
		for _, only := range p.cache {
			f = only
		}
	}
	if f != nil && p.xAxis == "" {
		p.xAxis = f.XAxisLabel()
	}
	return f
}

// axisFor returns the panel's x axis label, learning it from the frame for
// step when no frame has been shown yet.
func (p *Panel) axisFor(step int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameForLocked(step)
	return p.xAxis
}

// adoptGroupZoom gives a panel the zoom of its axis group while zoom sync is
// on, so a panel that joins a zoomed group renders with the shared range.
func (g *Gallery) adoptGroupZoom(p *Panel, step int) {
	bus := g.session.Sync
	if !bus.ZoomSync() {
		return
	}
	axis := p.axisFor(step)
	if axis == "" {
		return
	}
	if grp := bus.Group(axis); grp.Zoom != nil {
		p.mu.Lock()
		p.zoom = grp.Zoom
		p.mu.Unlock()
	}
}

// zoomAnnotation formats the visible range shown over a zoomed chart.
func zoomAnnotation(c *frames.ChartFrame, zoom *ZoomRange, yRange *[2]float64) string {
	if zoom == nil || c == nil {
		return ""
	}
	x0, x1, ok := c.XExtent()
	if !ok {
		return ""
	}
	var y0, y1 float64
	if yRange != nil {
		y0, y1 = yRange[0], yRange[1]
	} else if y0, y1, ok = c.YExtent(); !ok {
		return ""
	}
	return fmt.Sprintf("X: [%s, %s] Y: [%s, %s]", precision4(x0), precision4(x1), precision4(y0), precision4(y1))
}

func precision4(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// renderPanel hands the panel's current frame to its surface. Mesh geometry
// is only re-sent when topology changed; otherwise just the scalar field is
// updated.
func (g *Gallery) renderPanel(p *Panel) {
	item := p.ItemID()
	var itemRange *[2]float64
	if r, ok := g.session.ItemRange(item); ok {
		itemRange = &r
	}

	step, ok := p.CurrentStep()
	if !ok {
		step = g.session.CurrentStep()
	}
	g.adoptGroupZoom(p, step)
	plan, ok := p.planRender(step, itemRange)
	if !ok {
		if p.cachedLen() == 0 {
			p.surface.Clear()
		}
		g.events.Emit(EventGalleryReady, GalleryReady{PanelID: p.id, Step: step, HasData: false})
		return
	}

	f := plan.frame
	if plan.releaseMesh {
		g.session.addMeshRenderers(-1)
	}
	switch f.Kind {
	case frames.KindChart:
		p.surface.ShowChart(f.Chart, plan.view)
	case frames.KindMesh:
		if plan.firstMesh {
			g.session.addMeshRenderers(1)
		}
		if !f.Mesh.SameTopology(plan.prevMesh) {
			p.surface.SetGeometry(f.Mesh)
		}
		p.surface.SetScalarField(f.Mesh.Values, f.Mesh.ScalarRange())
		if plan.camera.IsReset() {
			p.surface.ResetCamera()
		} else {
			p.surface.SetCameraFocalPoint(plan.camera.FocalPoint)
			p.surface.SetCameraScale(plan.camera.Scale)
		}
	}
	g.events.Emit(EventGalleryReady, GalleryReady{PanelID: p.id, Step: f.Step, HasData: true})
}
