package gallery

// Rect is a screen-space rectangle with a top-left origin.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Viewport is a normalized [left, bottom, right, top] rectangle with a
// bottom-left origin, as consumed by the rendering backend.
type Viewport [4]float64

func (v Viewport) Left() float64   { return v[0] }
func (v Viewport) Bottom() float64 { return v[1] }
func (v Viewport) Right() float64  { return v[2] }
func (v Viewport) Top() float64    { return v[3] }

// ComputeViewport normalizes panel against container and flips the Y axis.
// It returns false when the container has no area.
func ComputeViewport(panel, container Rect) (Viewport, bool) {
	if container.Empty() {
		return Viewport{}, false
	}
	x := panel.X - container.X
	y := panel.Y - container.Y
	return Viewport{
		x / container.Width,
		1 - (y+panel.Height)/container.Height,
		(x + panel.Width) / container.Width,
		1 - y/container.Height,
	}, true
}

// GridCells splits container into rows*cols equally sized cells in row-major
// order, separated by gap pixels.
func GridCells(container Rect, rows, cols int, gap float64) []Rect {
	if rows <= 0 || cols <= 0 || container.Empty() {
		return nil
	}
	w := (container.Width - gap*float64(cols-1)) / float64(cols)
	h := (container.Height - gap*float64(rows-1)) / float64(rows)
	cells := make([]Rect, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, Rect{
				X:      container.X + float64(c)*(w+gap),
				Y:      container.Y + float64(r)*(h+gap),
				Width:  w,
				Height: h,
			})
		}
	}
	return cells
}
