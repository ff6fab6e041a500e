package viewer

import (
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
)

const (
	dragThreshold     = 4.0
	doubleClickWindow = 350 * time.Millisecond
)

type dragKind int

const (
	dragPan dragKind = iota
	dragBox
	dragChart
)

type inputState struct {
	active  bool
	kind    dragKind
	surface *Surface
	x0, y0  float64

	lastClick        time.Time
	lastClickSurface *Surface
}

func cursor() (float64, float64) {
	x, y := ebiten.CursorPosition()
	return float64(x), float64(y)
}

// handlePointer turns left button gestures into interaction handler calls.
// Shift-drag over a mesh draws a zoom box; drag over a chart zooms it; a
// plain drag over a mesh pans.
func (v *Viewer) handlePointer(now time.Time) {
	x, y := cursor()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		v.press(x, y, ebiten.IsKeyPressed(ebiten.KeyShift))
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		v.release(x, y, now)
	}
}

func (v *Viewer) press(x, y float64, shift bool) {
	hit := v.surfaceAt(x, y)
	v.input.active = true
	v.input.surface = hit
	v.input.x0, v.input.y0 = x, y
	v.input.kind = dragPan
	if hit != nil {
		if _, ok := hit.chartAxes(); ok {
			v.input.kind = dragChart
		} else if shift && hit.isMesh() {
			v.input.kind = dragBox
		}
	}
	if v.input.kind == dragBox {
		return
	}
	for _, s := range v.Surfaces() {
		if h := s.Handlers(); h.OnLeftButtonPress != nil {
			h.OnLeftButtonPress(gallery.PointerEvent{X: x, Y: y, Inside: s == hit})
		}
	}
}

func (v *Viewer) release(x, y float64, now time.Time) {
	in := v.input
	v.input.active = false
	if !in.active || in.surface == nil {
		return
	}
	h := in.surface.Handlers()
	moved := math.Hypot(x-in.x0, y-in.y0) > dragThreshold

	switch in.kind {
	case dragBox:
		if !moved || h.OnBoxSelect == nil {
			return
		}
		if sel, ok := in.surface.boxSelection(in.x0, in.y0, x, y); ok {
			h.OnBoxSelect(sel)
		}
		return
	case dragChart:
		axes, ok := in.surface.chartAxes()
		if !ok {
			return
		}
		if moved {
			if h.OnChartRelayout != nil {
				h.OnChartRelayout(axes.ZoomBetween(in.x0, in.y0, x, y))
			}
			return
		}
		if h.OnChartClick != nil {
			dx, _ := axes.ToData(x, y)
			h.OnChartClick(dx)
		}
	default:
		if h.OnLeftButtonRelease != nil {
			h.OnLeftButtonRelease(gallery.PointerEvent{X: x, Y: y, Inside: v.surfaceAt(x, y) == in.surface})
		}
		if moved {
			return
		}
	}

	if in.surface == v.input.lastClickSurface && now.Sub(v.input.lastClick) < doubleClickWindow {
		v.input.lastClick = time.Time{}
		v.input.lastClickSurface = nil
		if h.OnDoubleClick != nil {
			h.OnDoubleClick()
		}
		return
	}
	v.input.lastClick = now
	v.input.lastClickSurface = in.surface
}

// handleKeys maps the keyboard to playback, sync toggles and capture.
func (v *Viewer) handleKeys() {
	g := v.gallery
	session := g.Session()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		session.SetPaused(!session.Paused())
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		v.step(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		v.step(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		session.SetPaused(true)
		g.SetTimeStep(session.MinStep())
	case inpututil.IsKeyJustPressed(ebiten.KeyEnd):
		session.SetPaused(true)
		g.SetTimeStep(session.MaxStep())
	case inpututil.IsKeyJustPressed(ebiten.KeyZ):
		session.Sync.SetZoomSync(!session.Sync.ZoomSync())
		log.Printf("[VIEWER] Zoom sync: %v", session.Sync.ZoomSync())
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		session.Sync.SetCameraSync(!session.Sync.CameraSync())
		log.Printf("[VIEWER] Camera sync: %v", session.Sync.CameraSync())
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		session.SetTimeSelectorMode(!session.TimeSelectorMode())
		log.Printf("[VIEWER] Time selector: %v", session.TimeSelectorMode())
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		v.captureNext = true
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if s := v.surfaceAt(cursor()); s != nil {
			g.ResetView(s.ID())
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		if s := v.surfaceAt(cursor()); s != nil {
			v.requestDetail(s.ID())
		}
	}
}

func (v *Viewer) step(dir int) {
	v.gallery.Session().SetPaused(true)
	if next, ok := v.gallery.AdjacentStep(dir); ok {
		v.gallery.SetTimeStep(next)
	}
}
