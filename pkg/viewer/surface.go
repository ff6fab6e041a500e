package viewer

import (
	"sync"

	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
)

// Surface is one panel's region of the viewer window. The gallery writes to
// it from its own goroutines; the ebiten loop reads it while drawing.
type Surface struct {
	id gallery.PanelID

	mu         sync.Mutex
	viewport   gallery.Viewport
	placed     bool
	rect       gallery.Rect
	mesh       *frames.MeshFrame
	values     []float64
	colorRange [2]float64
	focal      *[3]float64
	scale      float64
	chart      *frames.ChartFrame
	view       gallery.ChartView
	handlers   gallery.InteractionHandlers
	geometries int
}

func newSurface(id gallery.PanelID) *Surface {
	return &Surface{id: id}
}

func (s *Surface) ID() gallery.PanelID { return s.id }

func (s *Surface) SetGeometry(mesh *frames.MeshFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mesh = mesh
	s.chart = nil
	s.geometries++
}

func (s *Surface) SetScalarField(values []float64, colorRange [2]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	s.colorRange = colorRange
}

func (s *Surface) SetCameraFocalPoint(fp *[3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fp == nil {
		s.focal = nil
		return
	}
	c := *fp
	s.focal = &c
}

func (s *Surface) SetCameraScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
}

func (s *Surface) ResetCamera() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focal = nil
	s.scale = 0
}

func (s *Surface) SetViewport(vp gallery.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
	s.placed = true
}

func (s *Surface) ShowChart(chart *frames.ChartFrame, view gallery.ChartView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart = chart
	s.view = view
	s.mesh = nil
	s.values = nil
}

func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart = nil
	s.mesh = nil
	s.values = nil
	s.view = gallery.ChartView{}
}

// PickAtPoint maps a screen point over a mesh to world coordinates. Chart
// surfaces report clicks through OnChartClick instead.
func (s *Surface) PickAtPoint(x, y float64) ([3]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil || s.rect.Empty() || !Contains(s.rect, x, y) {
		return [3]float64{}, false
	}
	wx, wy := s.cameraLocked().ScreenToWorld(s.rect, x, y)
	return [3]float64{wx, wy, 0}, true
}

func (s *Surface) Bind(h gallery.InteractionHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

func (s *Surface) Handlers() gallery.InteractionHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

// place recomputes the screen rectangle for a window of the given size.
func (s *Surface) place(width, height int) (gallery.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.placed {
		s.rect = gallery.Rect{}
		return s.rect, false
	}
	s.rect = ViewportRect(s.viewport, width, height)
	return s.rect, !s.rect.Empty()
}

func (s *Surface) Rect() gallery.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rect
}

func (s *Surface) cameraLocked() Camera {
	aspect := 1.0
	if s.rect.Height > 0 {
		aspect = s.rect.Width / s.rect.Height
	}
	return CameraFor(s.mesh.Bounds(), aspect, s.focal, s.scale)
}

// surfaceState is a copy of what a surface draws this frame.
type surfaceState struct {
	rect       gallery.Rect
	mesh       *frames.MeshFrame
	values     []float64
	colorRange [2]float64
	camera     Camera
	chart      *frames.ChartFrame
	view       gallery.ChartView
}

func (s *Surface) state() surfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := surfaceState{
		rect:       s.rect,
		mesh:       s.mesh,
		values:     s.values,
		colorRange: s.colorRange,
		chart:      s.chart,
		view:       s.view,
	}
	if s.mesh != nil {
		st.camera = s.cameraLocked()
	}
	return st
}

// boxSelection converts a drag over the surface into a box selection against
// the currently visible world bounds.
func (s *Surface) boxSelection(x0, y0, x1, y1 float64) (gallery.BoxSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil || s.rect.Empty() {
		return gallery.BoxSelection{}, false
	}
	bounds := s.cameraLocked().VisibleBounds(s.rect)
	return BoxSelection(s.rect, x0, y0, x1, y1, bounds), true
}

func (s *Surface) chartAxes() (ChartAxes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chart == nil || s.rect.Empty() {
		return ChartAxes{}, false
	}
	return NewChartAxes(plotArea(s.rect), s.chart, s.view), true
}

func (s *Surface) isMesh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mesh != nil
}
