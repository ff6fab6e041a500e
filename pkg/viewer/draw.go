package viewer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
)

const (
	statusHeight = 28
	fontSize     = 13.0
	colorbarW    = 12.0
	colorbarBins = 48
)

// maxBatchVertices keeps each DrawTriangles call within uint16 indices.
const maxBatchVertices = math.MaxUint16 - 2

func (v *Viewer) drawText(dst *ebiten.Image, s string, x, y, size float64, mono bool, clr color.Color) {
	src := v.fontSource
	if mono && v.monoSource != nil {
		src = v.monoSource
	}
	if src == nil || s == "" {
		return
	}
	face := &text.GoTextFace{Source: src, Size: size}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(dst, s, face, op)
}

func (v *Viewer) textWidth(s string, size float64, mono bool) float64 {
	src := v.fontSource
	if mono && v.monoSource != nil {
		src = v.monoSource
	}
	if src == nil {
		return 0
	}
	w, _ := text.Measure(s, &text.GoTextFace{Source: src, Size: size}, 0)
	return w
}

func clip(dst *ebiten.Image, r gallery.Rect) *ebiten.Image {
	rect := image.Rect(int(r.X), int(r.Y), int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)))
	return dst.SubImage(rect).(*ebiten.Image)
}

func (v *Viewer) drawSurface(screen *ebiten.Image, s *Surface, hovered bool) {
	st := s.state()
	r := st.rect
	if r.Empty() {
		return
	}
	vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), ColorPanel, false)
	border := ColorBorder
	if hovered {
		border = ColorActive
	}
	vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), 1, border, false)

	dst := clip(screen, r)
	switch {
	case st.mesh != nil:
		v.drawMesh(dst, st)
		v.drawColorbar(dst, st)
	case st.chart != nil:
		v.drawChart(dst, st)
	default:
		v.drawText(dst, "No data", r.X+r.Width/2-24, r.Y+r.Height/2-fontSize/2, fontSize, false, color.RGBA{160, 160, 160, 255})
	}
	v.drawTitle(dst, s.ID(), r)
}

// drawTitle labels a panel with its item, state and step.
func (v *Viewer) drawTitle(dst *ebiten.Image, id gallery.PanelID, r gallery.Rect) {
	if v.gallery == nil {
		return
	}
	p, err := v.gallery.Panel(id)
	if err != nil {
		return
	}
	label := p.ItemID()
	if label == "" {
		label = "(no item)"
	}
	if step, ok := p.CurrentStep(); ok {
		label += " @ " + strconv.Itoa(step)
	}
	switch p.State() {
	case gallery.StateLoading:
		label += " (loading)"
	case gallery.StateFailed:
		label += " (failed)"
		if err := p.Err(); err != nil {
			v.drawText(dst, err.Error(), r.X+6, r.Y+r.Height-fontSize-6, fontSize-2, true, ColorError)
		}
	}
	v.drawText(dst, label, r.X+6, r.Y+4, fontSize, false, ColorText)
}

// meshVertices projects every triangle of the mesh into screen space with
// one color per node, split into batches that fit uint16 indices.
func meshVertices(st surfaceState) [][]ebiten.Vertex {
	m := st.mesh
	var batches [][]ebiten.Vertex
	batch := make([]ebiten.Vertex, 0, min(3*len(m.Triangles), maxBatchVertices))
	for _, tri := range m.Triangles {
		if !validTriangle(tri, len(m.Nodes)) {
			continue
		}
		if len(batch)+3 > maxBatchVertices {
			batches = append(batches, batch)
			batch = make([]ebiten.Vertex, 0, maxBatchVertices)
		}
		for _, idx := range tri {
			n := m.Nodes[idx]
			sx, sy := st.camera.WorldToScreen(st.rect, n[0], n[1])
			val := math.NaN()
			if int(idx) < len(st.values) {
				val = st.values[idx]
			}
			c := Jet(Normalize(val, st.colorRange))
			batch = append(batch, ebiten.Vertex{
				DstX:   float32(sx),
				DstY:   float32(sy),
				SrcX:   1,
				SrcY:   1,
				ColorR: float32(c.R) / 255,
				ColorG: float32(c.G) / 255,
				ColorB: float32(c.B) / 255,
				ColorA: 1,
			})
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

func validTriangle(tri [3]int32, nodes int) bool {
	for _, idx := range tri {
		if idx < 0 || int(idx) >= nodes {
			return false
		}
	}
	return true
}

func (v *Viewer) drawMesh(dst *ebiten.Image, st surfaceState) {
	white := v.white()
	op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
	for _, batch := range meshVertices(st) {
		indices := make([]uint16, len(batch))
		for i := range indices {
			indices[i] = uint16(i)
		}
		dst.DrawTriangles(batch, indices, white, op)
	}

	r := st.rect
	m := st.mesh
	v.drawText(dst, m.XLabel, r.X+r.Width/2, r.Y+r.Height-fontSize-6, fontSize-1, false, ColorText)
	v.drawText(dst, m.YLabel, r.X+6, r.Y+r.Height/2, fontSize-1, false, ColorText)
}

// drawColorbar draws the scalar legend along the right edge of a mesh panel.
func (v *Viewer) drawColorbar(dst *ebiten.Image, st surfaceState) {
	r := st.rect
	top := r.Y + 28
	height := r.Height - 64
	if height < colorbarBins {
		return
	}
	x := r.X + r.Width - colorbarW - 56
	bin := height / colorbarBins
	for i := 0; i < colorbarBins; i++ {
		t := 1 - (float64(i)+0.5)/colorbarBins
		y := top + float64(i)*bin
		vector.DrawFilledRect(dst, float32(x), float32(y), colorbarW, float32(math.Ceil(bin)), Jet(t), false)
	}
	vector.StrokeRect(dst, float32(x), float32(top), colorbarW, float32(height), 1, ColorBorder, false)
	v.drawText(dst, formatTick(st.colorRange[1]), x+colorbarW+4, top-2, fontSize-2, true, ColorText)
	v.drawText(dst, formatTick(st.colorRange[0]), x+colorbarW+4, top+height-fontSize, fontSize-2, true, ColorText)
	if st.mesh.ColorLabel != "" {
		v.drawText(dst, st.mesh.ColorLabel, x-4, top-fontSize-4, fontSize-2, false, ColorText)
	}
}

func formatTick(f float64) string {
	if math.Abs(f) >= 1e4 && math.Abs(f) < 1e9 && f == math.Trunc(f) {
		return humanize.Comma(int64(f))
	}
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// xTick labels date and category x axes by their values.
func xTick(c *frames.ChartFrame, x float64) string {
	if s, ok := c.XTickLabel(x); ok {
		return s
	}
	return formatTick(x)
}

func (v *Viewer) drawChart(dst *ebiten.Image, st surfaceState) {
	plot := plotArea(st.rect)
	axes := NewChartAxes(plot, st.chart, st.view)
	vector.StrokeRect(dst, float32(plot.X), float32(plot.Y), float32(plot.Width), float32(plot.Height), 1, ColorBorder, false)

	inner := clip(dst, plot)
	for i, s := range st.chart.Data {
		clr := SeriesColor(i)
		n := min(len(s.X), len(s.Y))
		markers := strings.Contains(s.Mode, "markers")
		lines := s.Mode == "" || strings.Contains(s.Mode, "lines")
		for j := 0; j < n; j++ {
			x, y := axes.ToScreen(s.X[j], s.Y[j])
			if markers && isFinite(x, y) {
				vector.DrawFilledRect(inner, float32(x-1.5), float32(y-1.5), 3, 3, clr, false)
			}
			if !lines || j == 0 {
				continue
			}
			px, py := axes.ToScreen(s.X[j-1], s.Y[j-1])
			if isFinite(px, py, x, y) {
				vector.StrokeLine(inner, float32(px), float32(py), float32(x), float32(y), 1.5, clr, true)
			}
		}
	}

	v.drawText(dst, xTick(st.chart, axes.XRange[0]), plot.X, plot.Y+plot.Height+2, fontSize-2, true, ColorText)
	hi := xTick(st.chart, axes.XRange[1])
	v.drawText(dst, hi, plot.X+plot.Width-v.textWidth(hi, fontSize-2, true), plot.Y+plot.Height+2, fontSize-2, true, ColorText)
	lo := formatTick(axes.YRange[0])
	v.drawText(dst, lo, plot.X-v.textWidth(lo, fontSize-2, true)-4, plot.Y+plot.Height-fontSize, fontSize-2, true, ColorText)
	top := formatTick(axes.YRange[1])
	v.drawText(dst, top, plot.X-v.textWidth(top, fontSize-2, true)-4, plot.Y, fontSize-2, true, ColorText)

	layout := st.chart.Layout
	v.drawText(dst, layout.XAxis.Title.Text, plot.X+plot.Width/2, plot.Y+plot.Height+fontSize+4, fontSize-1, false, ColorText)
	v.drawText(dst, layout.YAxis.Title.Text, st.rect.X+4, plot.Y+plot.Height/2, fontSize-1, false, ColorText)
	if layout.Title.Text != "" {
		v.drawText(dst, layout.Title.Text, plot.X+4, plot.Y+4, fontSize-1, false, ColorText)
	}
	if st.view.Annotation != "" {
		w := v.textWidth(st.view.Annotation, fontSize-2, true)
		v.drawText(dst, st.view.Annotation, plot.X+plot.Width-w-4, plot.Y+4, fontSize-2, true, ColorSelection)
	}
}

func isFinite(vals ...float64) bool {
	for _, f := range vals {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// drawSelection outlines an in-progress box or chart zoom drag.
func (v *Viewer) drawSelection(screen *ebiten.Image) {
	if !v.input.active || v.input.kind == dragPan {
		return
	}
	x, y := cursor()
	x0, y0 := v.input.x0, v.input.y0
	w, h := x-x0, y-y0
	if w < 0 {
		x0, w = x, -w
	}
	if h < 0 {
		y0, h = y, -h
	}
	vector.StrokeRect(screen, float32(x0), float32(y0), float32(w), float32(h), 1, ColorSelection, false)
}

// drawStatus renders the session line along the bottom of the window.
func (v *Viewer) drawStatus(screen *ebiten.Image) {
	if v.gallery == nil {
		return
	}
	session := v.gallery.Session()
	y := float64(v.Height - statusHeight)
	vector.DrawFilledRect(screen, 0, float32(y), float32(v.Width), statusHeight, color.RGBA{0, 0, 0, 160}, false)

	play := "playing"
	if session.Paused() {
		play = "paused"
	}
	line := fmt.Sprintf("step %d [%d..%d]  %s  zoom-sync:%s  camera-sync:%s  time-select:%s  fetched:%s",
		session.CurrentStep(), session.MinStep(), session.MaxStep(), play,
		onOff(session.Sync.ZoomSync()), onOff(session.Sync.CameraSync()), onOff(session.TimeSelectorMode()),
		humanize.Comma(v.gallery.FetchCount()))
	v.drawText(screen, line, 8, y+7, fontSize, true, ColorText)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
