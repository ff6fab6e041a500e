package gallery

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sudorandom/sim-gallery/pkg/frames"
)

type PanelID string

func NewPanelID() PanelID { return PanelID(uuid.NewString()) }

type PanelState int

const (
	StateEmpty PanelState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s PanelState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "loading-failed"
	}
	return "unknown"
}

// Panel is one slot of the gallery grid. All fields are owned by the panel;
// the Gallery and SyncBus change them only through the methods below.
type Panel struct {
	id      PanelID
	surface Surface
	queue   *RenderQueue

	// prefetchMu keeps at most one prefetch loop running per panel.
	prefetchMu sync.Mutex

	mu           sync.Mutex
	itemID       string
	steps        []int
	times        []float64
	currentIndex int
	cache        map[int]*frames.Frame
	zoom         *ZoomRange
	xAxis        string
	state        PanelState
	lastErr      error
	gen          uint64
	ctx          context.Context
	cancel       context.CancelFunc

	displayed    *frames.Frame
	shownMesh    *frames.MeshFrame
	meshRenderer bool
	camera       CameraState
	startPick    *[3]float64
	timeIndex    int
	inside       bool
}

func newPanel(id PanelID, surface Surface, queue *RenderQueue) *Panel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Panel{
		id:        id,
		surface:   surface,
		queue:     queue,
		cache:     make(map[int]*frames.Frame),
		ctx:       ctx,
		cancel:    cancel,
		timeIndex: -1,
	}
}

func (p *Panel) ID() PanelID { return p.id }

func (p *Panel) ItemID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.itemID
}

func (p *Panel) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error that put the panel in the loading-failed state.
func (p *Panel) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Panel) Steps() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.steps...)
}

func (p *Panel) Times() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.times...)
}

// CurrentStep returns the available step the panel is positioned on.
func (p *Panel) CurrentStep() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentIndex < 0 || p.currentIndex >= len(p.steps) {
		return 0, false
	}
	return p.steps[p.currentIndex], true
}

func (p *Panel) Frame(step int) (*frames.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.cache[step]
	return f, ok
}

// CachedSteps lists the cached steps in ascending order.
func (p *Panel) CachedSteps() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, 0, len(p.cache))
	for s := range p.cache {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// Displayed returns the frame most recently handed to the surface.
func (p *Panel) Displayed() *frames.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayed
}

// Zoom returns the panel's effective zoom, nil for autorange.
func (p *Panel) Zoom() *ZoomRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zoom.Clone()
}

func (p *Panel) Camera() CameraState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.camera.Clone()
}

// TimeIndex is the index into Times picked by the last click, or -1.
func (p *Panel) TimeIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeIndex
}

// AxisLabel implements Subscriber.
func (p *Panel) AxisLabel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xAxis
}

// ApplyZoom implements Subscriber.
func (p *Panel) ApplyZoom(axis string, zoom *ZoomRange) {
	p.mu.Lock()
	if p.xAxis != axis {
		p.mu.Unlock()
		return
	}
	p.zoom = zoom.Clone()
	p.mu.Unlock()
	p.queue.MarkDirty(p.id)
}

// ApplyCamera implements Subscriber.
func (p *Panel) ApplyCamera(cam CameraState) {
	p.mu.Lock()
	p.camera = cam.Clone()
	p.mu.Unlock()
	p.queue.MarkDirty(p.id)
}

func (p *Panel) snapshot() (gen uint64, item string, ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen, p.itemID, p.ctx
}

// reset starts a new selection generation. Cache, zoom and step list are
// cleared together and any in-flight fetch of the old generation is
// cancelled. It reports whether the panel was holding a mesh renderer.
func (p *Panel) reset(itemID string) (hadMesh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.gen++
	p.itemID = itemID
	p.steps = nil
	p.times = nil
	p.currentIndex = -1
	p.cache = make(map[int]*frames.Frame)
	p.zoom = nil
	p.xAxis = ""
	p.state = StateEmpty
	p.lastErr = nil
	p.displayed = nil
	p.shownMesh = nil
	p.camera = CameraState{}
	p.startPick = nil
	p.timeIndex = -1
	hadMesh = p.meshRenderer
	p.meshRenderer = false
	return hadMesh
}

func (p *Panel) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.gen++
}

// setSteps installs the item's step list if gen is still current.
func (p *Panel) setSteps(gen uint64, steps []int, times []float64, current int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.steps = steps
	p.times = times
	p.currentIndex = indexOfStep(steps, current)
	return true
}

func (p *Panel) beginLoading(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.state = StateLoading
	}
}

// store caches f if gen is still current. A stale result is dropped.
func (p *Panel) store(gen uint64, f *frames.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.cache[f.Step] = f
	p.state = StateReady
	p.lastErr = nil
	return true
}

// fail records err without touching cached or displayed frames.
func (p *Panel) fail(gen uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.state = StateFailed
	p.lastErr = err
}

func (p *Panel) cachedLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func (p *Panel) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.gen
}

// position returns the current step index and a copy of the step list.
func (p *Panel) position() (int, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex, append([]int(nil), p.steps...)
}

// moveTo positions the panel on the available step nearest to step.
func (p *Panel) moveTo(step int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, _, ok := NearestAvailableStep(p.steps, step)
	if !ok {
		return 0, false
	}
	p.currentIndex = indexOfStep(p.steps, s)
	return s, true
}

func (p *Panel) markEmpty(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.state = StateEmpty
	}
}
