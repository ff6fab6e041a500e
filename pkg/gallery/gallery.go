// Package gallery coordinates the panels of a synchronized time-series
// gallery: per-panel frame caches with prefetch, shared zoom and camera
// state, time-step picking and viewport layout.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/sudorandom/sim-gallery/pkg/frames"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options tunes prefetching, picking and grid spacing.
type Options struct {
	// PrefetchWindow is the number of steps fetched ahead of the current one.
	PrefetchWindow int
	// MaxStepsLoaded caps the frames cached per panel by prefetch. Zero
	// means no cap.
	MaxStepsLoaded int
	// UnitScale converts pick coordinates into the units of the time list.
	UnitScale float64
	// Gap is the spacing in pixels between grid cells.
	Gap float64
}

// DefaultOptions prefetches three steps ahead and reads picks in milliseconds.
func DefaultOptions() Options {
	return Options{
		PrefetchWindow: 3,
		UnitScale:      0.001,
	}
}

// Gallery owns the panels of one session and their frame caches.
type Gallery struct {
	session  *Session
	source   DataSource
	decoder  *frames.Dispatcher
	renderer Renderer
	events   EventBus
	queue    *RenderQueue
	layout   *LayoutEngine
	opts     Options

	flight  singleflight.Group
	fetches atomic.Int64

	mu     sync.RWMutex
	panels map[PanelID]*Panel
	order  []PanelID
}

// New creates a gallery that fetches from source and draws through renderer.
// A nil events bus logs events instead.
func New(session *Session, source DataSource, renderer Renderer, events EventBus, opts Options) *Gallery {
	if events == nil {
		events = LogBus{}
	}
	return &Gallery{
		session:  session,
		source:   source,
		decoder:  frames.NewDispatcher(),
		renderer: renderer,
		events:   events,
		queue:    NewRenderQueue(),
		layout:   NewLayoutEngine(1, 1, opts.Gap),
		opts:     opts,
		panels:   make(map[PanelID]*Panel),
	}
}

func (g *Gallery) Session() *Session { return g.session }
func (g *Gallery) Layout() *LayoutEngine { return g.layout }
func (g *Gallery) RenderQueue() *RenderQueue { return g.queue }

// FetchCount is the number of frame fetches issued to the data source.
func (g *Gallery) FetchCount() int64 { return g.fetches.Load() }

// AddPanel allocates a surface for a new panel. A backend failure is
// returned wrapped in ErrSurfaceUnavailable and must be treated as fatal.
func (g *Gallery) AddPanel(id PanelID) (*Panel, error) {
	if id == "" {
		id = NewPanelID()
	}
	g.mu.Lock()
	if _, exists := g.panels[id]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("panel %s already exists", id)
	}
	g.mu.Unlock()

	surface, err := g.renderer.CreateSurface(id)
	if err != nil {
		if errors.Is(err, ErrSurfaceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}

	p := newPanel(id, surface, g.queue)
	surface.Bind(g.handlersFor(p))
	g.session.Sync.Subscribe(id, p)

	g.mu.Lock()
	g.panels[id] = p
	g.order = append(g.order, id)
	g.mu.Unlock()

	g.session.addVisiblePanels(1)
	g.Relayout()
	return p, nil
}

func (g *Gallery) RemovePanel(id PanelID) error {
	g.mu.Lock()
	p, ok := g.panels[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPanel, id)
	}
	delete(g.panels, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	if p.reset("") {
		g.session.addMeshRenderers(-1)
	}
	p.close()
	g.session.Sync.Unsubscribe(id)
	g.renderer.RemoveSurface(p.surface)
	g.layout.Forget(id)
	g.session.addVisiblePanels(-1)
	g.Relayout()
	return nil
}

func (g *Gallery) Panel(id PanelID) (*Panel, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.panels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, id)
	}
	return p, nil
}

// Panels returns the panels in grid order.
func (g *Gallery) Panels() []*Panel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Panel, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.panels[id])
	}
	return out
}

func (g *Gallery) panelOrder() []PanelID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]PanelID(nil), g.order...)
}

// SelectItem binds itemID to the panel. The cache and zoom are cleared in the
// same step, in-flight fetches for the previous item are cancelled and their
// results will be ignored.
func (g *Gallery) SelectItem(id PanelID, itemID string) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	if p.reset(itemID) {
		g.session.addMeshRenderers(-1)
	}
	g.session.Sync.ReleaseOrigin(id)
	g.queue.MarkDirty(id)
	log.Printf("[GALLERY] Panel %s selected item %q", id, itemID)
	return nil
}

// Open selects itemID, loads its first frame and starts prefetching in the
// background.
func (g *Gallery) Open(ctx context.Context, id PanelID, itemID string) error {
	if err := g.SelectItem(id, itemID); err != nil {
		return err
	}
	g.events.Emit(EventItemAdded, ItemAdded{PanelID: id, ItemID: itemID})
	if err := g.Load(ctx, id); err != nil {
		return err
	}
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	g.prefetchBackground(p)
	return nil
}

// Load fetches the step list of the panel's item and the frame closest to
// the session's current step.
func (g *Gallery) Load(ctx context.Context, id PanelID) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	gen, item, _ := p.snapshot()
	if item == "" {
		return fmt.Errorf("panel %s: %w", id, ErrNoItem)
	}
	p.beginLoading(gen)

	ts, err := g.source.Timesteps(ctx, item)
	if err != nil {
		if !p.isCurrent(gen) {
			return ErrStaleFetch
		}
		fe := &FetchError{PanelID: id, ItemID: item, Step: -1, Err: err}
		p.fail(gen, fe)
		log.Printf("[FETCH] %v", fe)
		return fe
	}

	steps, times := normalizeSteps(ts)
	if len(steps) == 0 {
		p.markEmpty(gen)
		g.events.Emit(EventGalleryReady, GalleryReady{PanelID: id, Step: g.session.CurrentStep(), HasData: false})
		return fmt.Errorf("panel %s item %q: %w", id, item, ErrNoStepAvailable)
	}
	g.session.raiseMinStep(steps[0])

	requested := g.session.CurrentStep()
	step, exact, _ := NearestAvailableStep(steps, requested)
	if !exact {
		log.Printf("[GALLERY] Panel %s: step %d not available for %q, showing %d", id, requested, item, step)
	}
	if !p.setSteps(gen, steps, times, step) {
		return ErrStaleFetch
	}

	if _, err := g.EnsureStepLoaded(ctx, id, step); err != nil {
		return err
	}
	g.session.raiseMaxStep(steps[len(steps)-1])
	g.queue.MarkDirty(id)
	return nil
}

// RefreshSteps re-reads the step list of the panel's item, keeping cached
// frames.
func (g *Gallery) RefreshSteps(ctx context.Context, id PanelID) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	gen, item, _ := p.snapshot()
	if item == "" {
		return nil
	}
	ts, err := g.source.Timesteps(ctx, item)
	if err != nil {
		return &FetchError{PanelID: id, ItemID: item, Step: -1, Err: err}
	}
	steps, times := normalizeSteps(ts)
	if len(steps) == 0 {
		return nil
	}
	step, _, _ := NearestAvailableStep(steps, g.session.CurrentStep())
	if !p.setSteps(gen, steps, times, step) {
		return ErrStaleFetch
	}
	g.session.raiseMaxStep(steps[len(steps)-1])
	g.queue.MarkDirty(id)
	return nil
}

// normalizeSteps pairs steps with their times and sorts them ascending,
// dropping duplicate steps. Missing times default to the step number.
func normalizeSteps(ts Timesteps) ([]int, []float64) {
	type pair struct {
		step int
		time float64
	}
	pairs := make([]pair, 0, len(ts.Steps))
	for i, s := range ts.Steps {
		t := float64(s)
		if i < len(ts.Time) {
			t = ts.Time[i]
		}
		pairs = append(pairs, pair{s, t})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].step < pairs[j].step })

	steps := make([]int, 0, len(pairs))
	times := make([]float64, 0, len(pairs))
	for i, pr := range pairs {
		if i > 0 && pr.step == pairs[i-1].step {
			continue
		}
		steps = append(steps, pr.step)
		times = append(times, pr.time)
	}
	return steps, times
}

func flightKey(id PanelID, gen uint64, step int) string {
	return fmt.Sprintf("%s/%d/%d", id, gen, step)
}

// EnsureStepLoaded returns the frame for step, fetching it if needed.
// Concurrent callers for the same panel and step share one fetch. On failure
// the panel keeps its previous frame and enters the loading-failed state.
func (g *Gallery) EnsureStepLoaded(ctx context.Context, id PanelID, step int) (*frames.Frame, error) {
	p, err := g.Panel(id)
	if err != nil {
		return nil, err
	}
	if f, ok := p.Frame(step); ok {
		return f, nil
	}
	gen, item, pctx := p.snapshot()
	if item == "" {
		return nil, fmt.Errorf("panel %s: %w", id, ErrNoItem)
	}

	ch := g.flight.DoChan(flightKey(id, gen, step), func() (any, error) {
		return g.fetchFrame(pctx, p, gen, item, step)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*frames.Frame), nil
	}
}

func (g *Gallery) fetchFrame(ctx context.Context, p *Panel, gen uint64, item string, step int) (*frames.Frame, error) {
	if f, ok := p.Frame(step); ok && f.ItemID == item {
		return f, nil
	}
	p.beginLoading(gen)
	g.fetches.Add(1)

	contentType, body, err := g.source.Frame(ctx, item, step)
	if err != nil {
		if !p.isCurrent(gen) {
			return nil, ErrStaleFetch
		}
		fe := &FetchError{PanelID: p.id, ItemID: item, Step: step, Err: err}
		p.fail(gen, fe)
		log.Printf("[FETCH] %v", fe)
		return nil, fe
	}

	f, err := g.decoder.Classify(step, body, contentType)
	if err != nil {
		p.fail(gen, err)
		log.Printf("[FETCH] Panel %s: %v", p.id, err)
		return nil, err
	}
	f.ItemID = item

	if !p.store(gen, f) {
		log.Printf("[FETCH] Panel %s: dropping stale %s step %d", p.id, item, step)
		return nil, ErrStaleFetch
	}
	g.session.raiseMaxStep(step)
	if cur, ok := p.CurrentStep(); !ok || cur == step || p.Displayed() == nil {
		g.queue.MarkDirty(p.id)
	}
	log.Printf("[FETCH] Panel %s: cached %s step %d (%s, %s)", p.id, item, step, f.Kind, humanize.Bytes(uint64(len(body))))
	return f, nil
}

// PrefetchAhead loads up to window steps after the panel's current step, one
// at a time. It stops at the last available step or at the per-panel
// MaxStepsLoaded cap.
func (g *Gallery) PrefetchAhead(ctx context.Context, id PanelID, window int) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	p.prefetchMu.Lock()
	defer p.prefetchMu.Unlock()

	cur, steps := p.position()
	for i := 1; i <= window; i++ {
		idx := cur + i
		if idx >= len(steps) {
			break
		}
		if g.opts.MaxStepsLoaded > 0 && p.cachedLen() >= g.opts.MaxStepsLoaded {
			break
		}
		if _, ok := p.Frame(steps[idx]); ok {
			continue
		}
		if _, err := g.EnsureStepLoaded(ctx, id, steps[idx]); err != nil {
			if errors.Is(err, ErrStaleFetch) {
				return nil
			}
			return err
		}
	}
	return nil
}

// PrefetchAll runs PrefetchAhead for every panel with an item, concurrently.
func (g *Gallery) PrefetchAll(ctx context.Context, window int) error {
	var eg errgroup.Group
	for _, p := range g.Panels() {
		if p.ItemID() == "" {
			continue
		}
		id := p.id
		eg.Go(func() error {
			return g.PrefetchAhead(ctx, id, window)
		})
	}
	return eg.Wait()
}

// prefetchBackground loads the panel's current frame and the steps after it
// under the panel's selection context.
func (g *Gallery) prefetchBackground(p *Panel) {
	_, item, ctx := p.snapshot()
	if item == "" {
		return
	}
	go func() {
		if step, ok := p.CurrentStep(); ok {
			if _, err := g.EnsureStepLoaded(ctx, p.id, step); err != nil {
				g.logBackground(p.id, err)
				return
			}
		}
		if err := g.PrefetchAhead(ctx, p.id, g.opts.PrefetchWindow); err != nil {
			g.logBackground(p.id, err)
		}
	}()
}

func (g *Gallery) logBackground(id PanelID, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrStaleFetch) {
		return
	}
	log.Printf("[GALLERY] Prefetch for panel %s failed: %v", id, err)
}

// SetTimeStep moves the session to step (clamped to the observed
// watermarks), repositions every panel and starts prefetching from there.
func (g *Gallery) SetTimeStep(step int) int {
	step = g.session.ClampStep(step)
	g.session.setCurrentStep(step)
	for _, p := range g.Panels() {
		if _, ok := p.moveTo(step); !ok {
			continue
		}
		g.queue.MarkDirty(p.id)
		g.prefetchBackground(p)
	}
	return step
}

// AdjacentStep returns the closest step after (dir > 0) or before (dir < 0)
// the session's current step that any panel has available.
func (g *Gallery) AdjacentStep(dir int) (int, bool) {
	cur := g.session.CurrentStep()
	best, found := 0, false
	for _, p := range g.Panels() {
		_, steps := p.position()
		for _, s := range steps {
			switch {
			case dir > 0 && s > cur && (!found || s < best):
				best, found = s, true
			case dir < 0 && s < cur && (!found || s > best):
				best, found = s, true
			}
		}
	}
	return best, found
}

// RequestDetail asks the host to open a detail view of the panel's item.
func (g *Gallery) RequestDetail(ctx context.Context, id PanelID) error {
	p, err := g.Panel(id)
	if err != nil {
		return err
	}
	item := p.ItemID()
	if item == "" {
		return fmt.Errorf("panel %s: %w", id, ErrNoItem)
	}
	name, err := g.source.ItemName(ctx, item)
	if err != nil {
		return &FetchError{PanelID: id, ItemID: item, Step: -1, Err: err}
	}
	isChart := true
	if f := p.Displayed(); f != nil && f.Kind == frames.KindMesh {
		isChart = false
	}
	g.events.Emit(EventParamSelected, ParamSelected{ID: item, Name: name, IsChartMode: isChart})
	return nil
}

// Tick renders every panel marked dirty since the previous tick. The
// rendering backend calls it once per frame.
func (g *Gallery) Tick() int {
	ids := g.queue.Drain()
	for _, id := range ids {
		p, err := g.Panel(id)
		if err != nil {
			continue
		}
		g.renderPanel(p)
	}
	return len(ids)
}

// Relayout pushes changed viewports to the panels' surfaces.
func (g *Gallery) Relayout() {
	for id, vp := range g.layout.Relayout(g.panelOrder()) {
		p, err := g.Panel(id)
		if err != nil {
			continue
		}
		p.surface.SetViewport(vp)
	}
}

func (g *Gallery) SetGrid(rows, cols int) {
	g.layout.SetGrid(rows, cols)
	g.Relayout()
}

func (g *Gallery) SetContainer(r Rect) {
	g.layout.SetContainer(r)
	g.Relayout()
}

func (g *Gallery) SetPanelBounds(id PanelID, r Rect) {
	g.layout.SetMeasured(id, r)
	g.Relayout()
}
