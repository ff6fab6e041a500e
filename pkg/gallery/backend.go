package gallery

import (
	"context"

	"github.com/sudorandom/sim-gallery/pkg/frames"
)

// Timesteps is the data service's answer for one item. Steps and Time are
// parallel slices.
type Timesteps struct {
	Steps []int     `json:"steps"`
	Time  []float64 `json:"time"`
}

// DataSource is the data service collaborator.
type DataSource interface {
	Timesteps(ctx context.Context, itemID string) (Timesteps, error)
	Frame(ctx context.Context, itemID string, step int) (contentType string, body []byte, err error)
	ItemName(ctx context.Context, itemID string) (string, error)
}

// Renderer allocates one drawing surface per panel.
type Renderer interface {
	CreateSurface(id PanelID) (Surface, error)
	RemoveSurface(s Surface)
}

// PointerEvent is a left button press or release in screen coordinates.
// Inside reports whether the pointer is over the receiving surface.
type PointerEvent struct {
	X, Y   float64
	Inside bool
}

// BoxSelection is a box drawn over a mesh surface. X1..Y2 are display
// coordinates relative to the surface's bottom-left corner, with X1 <= X2 and
// Y1 <= Y2. Bounds are the visible world bounds [minX, maxX, minY, maxY].
type BoxSelection struct {
	X1, Y1, X2, Y2 float64
	Bounds         [4]float64
	Inside         bool
}

// InteractionHandlers are installed on a surface by its panel.
type InteractionHandlers struct {
	OnLeftButtonPress   func(PointerEvent)
	OnLeftButtonRelease func(PointerEvent)
	OnBoxSelect         func(BoxSelection)
	OnChartClick        func(x float64)
	OnChartRelayout     func(zoom *ZoomRange)
	OnDoubleClick       func()
}

// ChartView carries the panel state a chart is drawn with.
type ChartView struct {
	Zoom       *ZoomRange
	YRange     *[2]float64
	Annotation string
}

// Surface is one panel's slice of the rendering backend.
type Surface interface {
	SetGeometry(mesh *frames.MeshFrame)
	SetScalarField(values []float64, colorRange [2]float64)
	SetCameraFocalPoint(fp *[3]float64)
	SetCameraScale(scale float64)
	ResetCamera()
	SetViewport(vp Viewport)
	ShowChart(chart *frames.ChartFrame, view ChartView)
	Clear()
	PickAtPoint(x, y float64) ([3]float64, bool)
	Bind(h InteractionHandlers)
}
