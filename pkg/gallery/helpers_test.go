package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sudorandom/sim-gallery/pkg/frames"
)

type payloadFunc func(step int) (string, []byte, error)

type fakeItem struct {
	ts      Timesteps
	name    string
	payload payloadFunc
}

// fakeSource serves items from memory. When gate is set, Frame blocks until
// the gate is closed.
type fakeSource struct {
	mu        sync.Mutex
	items     map[string]*fakeItem
	gate      chan struct{}
	ignoreCtx bool
	started   chan int
	calls     atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items:   make(map[string]*fakeItem),
		started: make(chan int, 64),
	}
}

func (s *fakeSource) add(id string, steps []int, times []float64, payload payloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = &fakeItem{ts: Timesteps{Steps: steps, Time: times}, name: "name-" + id, payload: payload}
}

func (s *fakeSource) item(id string) (*fakeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("no item %q", id)
	}
	return it, nil
}

func (s *fakeSource) Timesteps(ctx context.Context, itemID string) (Timesteps, error) {
	it, err := s.item(itemID)
	if err != nil {
		return Timesteps{}, err
	}
	return it.ts, nil
}

func (s *fakeSource) Frame(ctx context.Context, itemID string, step int) (string, []byte, error) {
	s.calls.Add(1)
	select {
	case s.started <- step:
	default:
	}
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		if s.ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}
	}
	it, err := s.item(itemID)
	if err != nil {
		return "", nil, err
	}
	return it.payload(step)
}

func (s *fakeSource) ItemName(ctx context.Context, itemID string) (string, error) {
	it, err := s.item(itemID)
	if err != nil {
		return "", err
	}
	return it.name, nil
}

func chartPayload(label string) payloadFunc {
	return func(step int) (string, []byte, error) {
		doc := fmt.Sprintf(`{"data":[{"x":[0,1000,2000],"y":[%d,2,3]}],"layout":{"xaxis":{"title":{"text":%q}},"yaxis":{"title":"v"}}}`, step, label)
		return "application/json", []byte(doc), nil
	}
}

func square(values ...float64) *frames.MeshFrame {
	return &frames.MeshFrame{
		Nodes:     [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Triangles: [][3]int32{{0, 1, 2}, {0, 2, 3}},
		Values:    values,
		XLabel:    "R",
		YLabel:    "Z",
	}
}

func meshPayload(meshFor func(step int) *frames.MeshFrame) payloadFunc {
	return func(step int) (string, []byte, error) {
		body, err := frames.EncodeMesh(meshFor(step))
		return frames.ContentTypeMsgpack, body, err
	}
}

func failingAt(bad int, next payloadFunc) payloadFunc {
	return func(step int) (string, []byte, error) {
		if step == bad {
			return "", nil, errors.New("service unavailable")
		}
		return next(step)
	}
}

type fakeSurface struct {
	mu          sync.Mutex
	id          PanelID
	handlers    InteractionHandlers
	geometry    int
	scalars     int
	charts      []ChartView
	viewports   []Viewport
	clears      int
	resets      int
	focalPoint  *[3]float64
	scale       float64
	pick        func(x, y float64) ([3]float64, bool)
	lastScalars []float64
}

func (s *fakeSurface) SetGeometry(mesh *frames.MeshFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry++
}

func (s *fakeSurface) SetScalarField(values []float64, colorRange [2]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars++
	s.lastScalars = values
}

func (s *fakeSurface) SetCameraFocalPoint(fp *[3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focalPoint = fp
}

func (s *fakeSurface) SetCameraScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
}

func (s *fakeSurface) ResetCamera() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *fakeSurface) SetViewport(vp Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewports = append(s.viewports, vp)
}

func (s *fakeSurface) ShowChart(chart *frames.ChartFrame, view ChartView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts = append(s.charts, view)
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSurface) PickAtPoint(x, y float64) ([3]float64, bool) {
	if s.pick != nil {
		return s.pick(x, y)
	}
	return [3]float64{x, y, 0}, true
}

func (s *fakeSurface) Bind(h InteractionHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

func (s *fakeSurface) counts() (geometry, scalars int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry, s.scalars
}

type fakeRenderer struct {
	mu       sync.Mutex
	surfaces map[PanelID]*fakeSurface
	removed  int
	err      error
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{surfaces: make(map[PanelID]*fakeSurface)}
}

func (r *fakeRenderer) CreateSurface(id PanelID) (Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSurface{id: id}
	r.surfaces[id] = s
	return s, nil
}

func (r *fakeRenderer) RemoveSurface(s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed++
}

func (r *fakeRenderer) surface(id PanelID) *fakeSurface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[id]
}

type recordedEvent struct {
	name    string
	payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBus) Emit(name string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{name, payload})
}

func (b *recordingBus) named(name string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, e := range b.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

type harness struct {
	g        *Gallery
	src      *fakeSource
	renderer *fakeRenderer
	bus      *recordingBus
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		src:      newFakeSource(),
		renderer: newFakeRenderer(),
		bus:      &recordingBus{},
	}
	h.g = New(NewSession(), h.src, h.renderer, h.bus, opts)
	return h
}

func (h *harness) panel(t *testing.T, id PanelID) *Panel {
	t.Helper()
	p, err := h.g.AddPanel(id)
	if err != nil {
		t.Fatalf("AddPanel(%s) failed: %v", id, err)
	}
	return p
}

// load selects item on the panel and loads its current frame.
func (h *harness) load(t *testing.T, id PanelID, item string) {
	t.Helper()
	if err := h.g.SelectItem(id, item); err != nil {
		t.Fatalf("SelectItem failed: %v", err)
	}
	if err := h.g.Load(context.Background(), id); err != nil {
		t.Fatalf("Load(%s) failed: %v", id, err)
	}
}
