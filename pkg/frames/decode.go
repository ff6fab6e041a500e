package frames

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrDecode = errors.New("malformed frame payload")

// DecodeError describes a payload that could not be turned into a Frame.
type DecodeError struct {
	Step        int
	ContentType string
	Reason      string
	Err         error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode step %d (%s): %s", e.Step, e.ContentType, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

const (
	ContentTypeMsgpack  = "application/msgpack"
	ContentTypeXMsgpack = "application/x-msgpack"
	ContentTypeJSON     = "application/json"

	triangleSize = 3 * 4
	nodeSize     = 2 * 8
	valueSize    = 8
)

// meshEnvelope is the msgpack map sent by the data service for mesh plots.
// The byte fields are views into the transfer buffer and may start at any
// offset.
type meshEnvelope struct {
	Connectivity []byte `msgpack:"connectivity"`
	Nodes        []byte `msgpack:"nodes"`
	Color        []byte `msgpack:"color"`
	XLabel       string `msgpack:"xLabel"`
	YLabel       string `msgpack:"yLabel"`
	ColorLabel   string `msgpack:"colorLabel"`
}

type chartEnvelope struct {
	Data   *[]Series    `json:"data"`
	Layout *ChartLayout `json:"layout"`
}

// Dispatcher classifies raw payloads by declared content type.
type Dispatcher struct{}

func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// Classify decodes payload into a Frame. Mesh payloads are recognized only by
// their declared content type; everything else is parsed as a chart document.
func (d *Dispatcher) Classify(step int, payload []byte, contentType string) (*Frame, error) {
	if isMsgpack(contentType) {
		mesh, err := DecodeMesh(payload)
		if err != nil {
			return nil, wrapDecode(step, contentType, err)
		}
		return &Frame{Step: step, Kind: KindMesh, Mesh: mesh}, nil
	}
	chart, err := DecodeChart(payload)
	if err != nil {
		return nil, wrapDecode(step, contentType, err)
	}
	return &Frame{Step: step, Kind: KindChart, Chart: chart}, nil
}

func wrapDecode(step int, contentType string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		de.Step = step
		de.ContentType = contentType
		return de
	}
	return &DecodeError{Step: step, ContentType: contentType, Reason: "invalid payload", Err: err}
}

func isMsgpack(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt == ContentTypeMsgpack || mt == ContentTypeXMsgpack
}

// DecodeChart parses a {data, layout} document as-is. Each trace and the
// layout keep their raw JSON; values that are not numbers read as NaN.
func DecodeChart(payload []byte) (*ChartFrame, error) {
	var env chartEnvelope
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&env); err != nil {
		return nil, &DecodeError{Reason: "invalid chart document", Err: err}
	}
	if env.Data == nil || env.Layout == nil {
		return nil, &DecodeError{Reason: "chart document needs data and layout"}
	}
	return &ChartFrame{Data: *env.Data, Layout: *env.Layout}, nil
}

// DecodeMesh unpacks a msgpack mesh envelope and decodes its binary blobs.
func DecodeMesh(payload []byte) (*MeshFrame, error) {
	var env meshEnvelope
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid mesh envelope", Err: err}
	}

	nodes, err := decodeNodes(env.Nodes)
	if err != nil {
		return nil, err
	}
	tris, err := decodeTriangles(env.Connectivity, len(nodes))
	if err != nil {
		return nil, err
	}
	values, err := decodeValues(env.Color)
	if err != nil {
		return nil, err
	}
	if len(values) != len(nodes) {
		return nil, &DecodeError{Reason: fmt.Sprintf("%d scalar values for %d nodes", len(values), len(nodes))}
	}

	return &MeshFrame{
		Nodes:      nodes,
		Triangles:  tris,
		Values:     values,
		XLabel:     env.XLabel,
		YLabel:     env.YLabel,
		ColorLabel: env.ColorLabel,
	}, nil
}

// alignedCopy copies a borrowed byte range into freshly allocated storage so
// fixed-width reads never touch the transfer buffer.
func alignedCopy(raw []byte) []byte {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return buf
}

func decodeTriangles(raw []byte, nodeCount int) ([][3]int32, error) {
	if len(raw)%triangleSize != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("connectivity length %d is not a multiple of %d", len(raw), triangleSize)}
	}
	buf := alignedCopy(raw)
	tris := make([][3]int32, len(buf)/triangleSize)
	for i := range tris {
		off := i * triangleSize
		for j := 0; j < 3; j++ {
			idx := int32(binary.LittleEndian.Uint32(buf[off+j*4:]))
			if idx < 0 || int(idx) >= nodeCount {
				return nil, &DecodeError{Reason: fmt.Sprintf("triangle %d references node %d of %d", i, idx, nodeCount)}
			}
			tris[i][j] = idx
		}
	}
	return tris, nil
}

func decodeNodes(raw []byte) ([][2]float64, error) {
	if len(raw)%nodeSize != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("nodes length %d is not a multiple of %d", len(raw), nodeSize)}
	}
	buf := alignedCopy(raw)
	nodes := make([][2]float64, len(buf)/nodeSize)
	for i := range nodes {
		off := i * nodeSize
		nodes[i][0] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		nodes[i][1] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:]))
	}
	return nodes, nil
}

func decodeValues(raw []byte) ([]float64, error) {
	if len(raw)%valueSize != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("color length %d is not a multiple of %d", len(raw), valueSize)}
	}
	buf := alignedCopy(raw)
	values := make([]float64, len(buf)/valueSize)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*valueSize:]))
	}
	return values, nil
}

// EncodeMesh produces the wire form of m. Used by the directory source and
// test fixtures.
func EncodeMesh(m *MeshFrame) ([]byte, error) {
	env := meshEnvelope{
		Connectivity: make([]byte, len(m.Triangles)*triangleSize),
		Nodes:        make([]byte, len(m.Nodes)*nodeSize),
		Color:        make([]byte, len(m.Values)*valueSize),
		XLabel:       m.XLabel,
		YLabel:       m.YLabel,
		ColorLabel:   m.ColorLabel,
	}
	for i, t := range m.Triangles {
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(env.Connectivity[i*triangleSize+j*4:], uint32(t[j]))
		}
	}
	for i, n := range m.Nodes {
		binary.LittleEndian.PutUint64(env.Nodes[i*nodeSize:], math.Float64bits(n[0]))
		binary.LittleEndian.PutUint64(env.Nodes[i*nodeSize+8:], math.Float64bits(n[1]))
	}
	for i, v := range m.Values {
		binary.LittleEndian.PutUint64(env.Color[i*valueSize:], math.Float64bits(v))
	}
	return msgpack.Marshal(&env)
}
