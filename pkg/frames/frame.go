// Package frames holds the renderer-agnostic frame model and the decoder that
// turns raw data-service payloads into frames.
package frames

import "math"

type Kind int

const (
	KindChart Kind = iota
	KindMesh
)

func (k Kind) String() string {
	switch k {
	case KindChart:
		return "chart"
	case KindMesh:
		return "mesh"
	}
	return "unknown"
}

// Frame is a decoded, renderable snapshot of one time step. Frames are never
// mutated after Classify returns them.
type Frame struct {
	Step   int
	ItemID string
	Kind   Kind
	Chart  *ChartFrame
	Mesh   *MeshFrame
}

// XAxisLabel returns the label used to key zoom sync groups.
func (f *Frame) XAxisLabel() string {
	if f == nil {
		return ""
	}
	switch f.Kind {
	case KindChart:
		if f.Chart != nil {
			return f.Chart.Layout.XAxis.Title.Text
		}
	case KindMesh:
		if f.Mesh != nil {
			return f.Mesh.XLabel
		}
	}
	return ""
}

// MeshFrame is a triangulated 2-D mesh with one scalar value per node.
type MeshFrame struct {
	Nodes      [][2]float64
	Triangles  [][3]int32
	Values     []float64
	XLabel     string
	YLabel     string
	ColorLabel string
}

// Bounds returns [minX, maxX, minY, maxY] of the node coordinates.
func (m *MeshFrame) Bounds() [4]float64 {
	if m == nil || len(m.Nodes) == 0 {
		return [4]float64{}
	}
	b := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, n := range m.Nodes {
		b[0] = math.Min(b[0], n[0])
		b[1] = math.Max(b[1], n[0])
		b[2] = math.Min(b[2], n[1])
		b[3] = math.Max(b[3], n[1])
	}
	return b
}

// ScalarRange returns the min and max of the finite node values.
func (m *MeshFrame) ScalarRange() [2]float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range m.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return [2]float64{}
	}
	return [2]float64{lo, hi}
}

// SameTopology reports whether other has identical nodes and connectivity, in
// which case only the scalar field needs to be forwarded to the renderer.
func (m *MeshFrame) SameTopology(other *MeshFrame) bool {
	if m == nil || other == nil {
		return false
	}
	if len(m.Nodes) != len(other.Nodes) || len(m.Triangles) != len(other.Triangles) {
		return false
	}
	for i := range m.Triangles {
		if m.Triangles[i] != other.Triangles[i] {
			return false
		}
	}
	for i := range m.Nodes {
		if m.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	return true
}
