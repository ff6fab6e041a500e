package viewer

import (
	"math"

	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
)

// fitPadding leaves a small margin around a mesh fitted to its panel.
const fitPadding = 1.05

// Camera is a parallel projection looking down the z axis. HalfHeight is the
// world distance from the center to the top edge of the panel.
type Camera struct {
	CenterX, CenterY float64
	HalfHeight       float64
}

// FitCamera frames bounds [minX, maxX, minY, maxY] in a panel with the given
// width/height aspect ratio.
func FitCamera(bounds [4]float64, aspect float64) Camera {
	w := (bounds[1] - bounds[0]) / 2
	h := (bounds[3] - bounds[2]) / 2
	if aspect <= 0 {
		aspect = 1
	}
	half := math.Max(h, w/aspect) * fitPadding
	if half <= 0 {
		half = 1
	}
	return Camera{
		CenterX:    (bounds[0] + bounds[1]) / 2,
		CenterY:    (bounds[2] + bounds[3]) / 2,
		HalfHeight: half,
	}
}

// CameraFor applies a shared focal point and scale on top of the fitted
// camera. A nil focal point or zero scale keeps the fitted value.
func CameraFor(bounds [4]float64, aspect float64, focal *[3]float64, scale float64) Camera {
	cam := FitCamera(bounds, aspect)
	if focal != nil {
		cam.CenterX, cam.CenterY = focal[0], focal[1]
	}
	if scale > 0 {
		cam.HalfHeight = scale
	}
	return cam
}

func (c Camera) pixelsPerUnit(r gallery.Rect) float64 {
	if c.HalfHeight <= 0 {
		return 1
	}
	return (r.Height / 2) / c.HalfHeight
}

// WorldToScreen projects a world point into the panel rectangle r.
func (c Camera) WorldToScreen(r gallery.Rect, x, y float64) (float64, float64) {
	k := c.pixelsPerUnit(r)
	return r.X + r.Width/2 + (x-c.CenterX)*k, r.Y + r.Height/2 - (y-c.CenterY)*k
}

// ScreenToWorld is the inverse of WorldToScreen.
func (c Camera) ScreenToWorld(r gallery.Rect, sx, sy float64) (float64, float64) {
	k := c.pixelsPerUnit(r)
	return c.CenterX + (sx-r.X-r.Width/2)/k, c.CenterY - (sy-r.Y-r.Height/2)/k
}

// VisibleBounds returns the world rectangle shown in r.
func (c Camera) VisibleBounds(r gallery.Rect) [4]float64 {
	x0, y1 := c.ScreenToWorld(r, r.X, r.Y)
	x1, y0 := c.ScreenToWorld(r, r.X+r.Width, r.Y+r.Height)
	return [4]float64{x0, x1, y0, y1}
}

// ViewportRect converts a normalized bottom-left viewport into a screen
// rectangle with a top-left origin.
func ViewportRect(vp gallery.Viewport, width, height int) gallery.Rect {
	w, h := float64(width), float64(height)
	return gallery.Rect{
		X:      vp.Left() * w,
		Y:      (1 - vp.Top()) * h,
		Width:  (vp.Right() - vp.Left()) * w,
		Height: (vp.Top() - vp.Bottom()) * h,
	}
}

// Contains reports whether the screen point lies inside r.
func Contains(r gallery.Rect, x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// BoxSelection orders the corners of a drag inside r and converts them to
// display coordinates relative to r's bottom-left corner.
func BoxSelection(r gallery.Rect, x0, y0, x1, y1 float64, bounds [4]float64) gallery.BoxSelection {
	dx0, dx1 := x0-r.X, x1-r.X
	dy0, dy1 := r.Y+r.Height-y0, r.Y+r.Height-y1
	return gallery.BoxSelection{
		X1:     math.Min(dx0, dx1),
		Y1:     math.Min(dy0, dy1),
		X2:     math.Max(dx0, dx1),
		Y2:     math.Max(dy0, dy1),
		Bounds: bounds,
		Inside: true,
	}
}

// ChartAxes maps chart data coordinates to a plot rectangle.
type ChartAxes struct {
	Plot   gallery.Rect
	XRange [2]float64
	YRange [2]float64
}

// NewChartAxes picks the visible data ranges: the zoom if any, otherwise the
// data extents, with a fixed item y range taking precedence for y.
func NewChartAxes(plot gallery.Rect, chart *frames.ChartFrame, view gallery.ChartView) ChartAxes {
	a := ChartAxes{Plot: plot, XRange: [2]float64{0, 1}, YRange: [2]float64{0, 1}}
	if lo, hi, ok := seriesExtent(chart, func(s frames.Series) []float64 { return s.X }); ok {
		a.XRange = [2]float64{lo, hi}
	}
	if lo, hi, ok := seriesExtent(chart, func(s frames.Series) []float64 { return s.Y }); ok {
		a.YRange = [2]float64{lo, hi}
	}
	if r := chart.Layout.YAxis.Range; len(r) == 2 {
		a.YRange = [2]float64{r[0], r[1]}
	}
	if view.Zoom != nil {
		a.XRange = view.Zoom.XAxis
		a.YRange = view.Zoom.YAxis
	}
	if view.YRange != nil {
		a.YRange = *view.YRange
	}
	a.XRange = widen(a.XRange)
	a.YRange = widen(a.YRange)
	return a
}

func seriesExtent(chart *frames.ChartFrame, pick func(frames.Series) []float64) (float64, float64, bool) {
	if chart == nil {
		return 0, 0, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range chart.Data {
		for _, v := range pick(s) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi, lo <= hi
}

func widen(r [2]float64) [2]float64 {
	if r[0] > r[1] {
		r[0], r[1] = r[1], r[0]
	}
	if r[0] == r[1] {
		return [2]float64{r[0] - 0.5, r[1] + 0.5}
	}
	return r
}

func (a ChartAxes) ToScreen(x, y float64) (float64, float64) {
	sx := a.Plot.X + (x-a.XRange[0])/(a.XRange[1]-a.XRange[0])*a.Plot.Width
	sy := a.Plot.Y + a.Plot.Height - (y-a.YRange[0])/(a.YRange[1]-a.YRange[0])*a.Plot.Height
	return sx, sy
}

func (a ChartAxes) ToData(sx, sy float64) (float64, float64) {
	x := a.XRange[0] + (sx-a.Plot.X)/a.Plot.Width*(a.XRange[1]-a.XRange[0])
	y := a.YRange[0] + (a.Plot.Y+a.Plot.Height-sy)/a.Plot.Height*(a.YRange[1]-a.YRange[0])
	return x, y
}

// ZoomBetween returns the range spanned by two screen points of a drag.
func (a ChartAxes) ZoomBetween(x0, y0, x1, y1 float64) *gallery.ZoomRange {
	dx0, dy0 := a.ToData(x0, y0)
	dx1, dy1 := a.ToData(x1, y1)
	return &gallery.ZoomRange{
		XAxis: [2]float64{math.Min(dx0, dx1), math.Max(dx0, dx1)},
		YAxis: [2]float64{math.Min(dy0, dy1), math.Max(dy0, dy1)},
	}
}

// plotArea insets a panel rectangle to leave room for axis labels.
func plotArea(r gallery.Rect) gallery.Rect {
	const left, right, top, bottom = 56, 12, 24, 36
	p := gallery.Rect{X: r.X + left, Y: r.Y + top, Width: r.Width - left - right, Height: r.Height - top - bottom}
	if p.Width < 1 {
		p.Width = 1
	}
	if p.Height < 1 {
		p.Height = 1
	}
	return p
}
