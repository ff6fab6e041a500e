package gallery

import (
	"fmt"
	"log"
	"sync"
)

// ZoomRange is an explicit chart range. A nil *ZoomRange means autorange.
type ZoomRange struct {
	XAxis [2]float64 `json:"xAxis"`
	YAxis [2]float64 `json:"yAxis"`
}

func (z *ZoomRange) Clone() *ZoomRange {
	if z == nil {
		return nil
	}
	c := *z
	return &c
}

// CameraState is the shared mesh camera. The zero value is the reset state.
type CameraState struct {
	FocalPoint *[3]float64 `json:"focalPoint"`
	Scale      float64     `json:"scale"`
}

func (c CameraState) Clone() CameraState {
	if c.FocalPoint != nil {
		fp := *c.FocalPoint
		c.FocalPoint = &fp
	}
	return c
}

func (c CameraState) IsReset() bool { return c.FocalPoint == nil && c.Scale == 0 }

// SyncGroup is the shared zoom state of all panels with the same x axis label.
type SyncGroup struct {
	Axis   string
	Origin PanelID
	Zoom   *ZoomRange
}

// Subscriber is a panel that receives shared zoom and camera updates.
type Subscriber interface {
	AxisLabel() string
	ApplyZoom(axis string, zoom *ZoomRange)
	ApplyCamera(cam CameraState)
}

type subscription struct {
	id  PanelID
	sub Subscriber
}

// SyncBus is the only writer of cross-panel zoom and camera state. Fan-out is
// synchronous: every subscriber has applied an update before the publishing
// call returns, and concurrent publishes are serialized.
type SyncBus struct {
	publishMu sync.Mutex

	mu         sync.RWMutex
	zoomSync   bool
	cameraSync bool
	groups     map[string]*SyncGroup
	camera     CameraState
	subs       []subscription
}

// NewSyncBus returns a bus with zoom and camera sync off.
func NewSyncBus() *SyncBus {
	return &SyncBus{groups: make(map[string]*SyncGroup)}
}

// SetZoomSync turns zoom sharing on or off. Turning it on hands each group's
// zoom to the other panels already on that axis.
func (b *SyncBus) SetZoomSync(on bool) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	type pending struct {
		sub  Subscriber
		axis string
		zoom *ZoomRange
	}
	b.mu.Lock()
	enabled := on && !b.zoomSync
	b.zoomSync = on
	var updates []pending
	if enabled {
		for _, s := range b.subs {
			axis := s.sub.AxisLabel()
			g, ok := b.groups[axis]
			if !ok || g.Zoom == nil || g.Origin == s.id {
				continue
			}
			updates = append(updates, pending{s.sub, axis, g.Zoom.Clone()})
		}
	}
	b.mu.Unlock()

	for _, u := range updates {
		u.sub.ApplyZoom(u.axis, u.zoom)
	}
}

func (b *SyncBus) ZoomSync() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.zoomSync
}

func (b *SyncBus) SetCameraSync(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cameraSync = on
}

func (b *SyncBus) CameraSync() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cameraSync
}

func (b *SyncBus) Subscribe(id PanelID, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.subs {
		if existing.id == id {
			b.subs[i].sub = s
			return
		}
	}
	b.subs = append(b.subs, subscription{id: id, sub: s})
}

// Unsubscribe removes a panel and releases any group it was origin of.
func (b *SyncBus) Unsubscribe(id PanelID) {
	b.mu.Lock()
	for i, existing := range b.subs {
		if existing.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.ReleaseOrigin(id)
}

// ReleaseOrigin clears every group whose origin is id.
func (b *SyncBus) ReleaseOrigin(id PanelID) {
	b.mu.RLock()
	var axes []string
	for axis, g := range b.groups {
		if g.Origin == id {
			axes = append(axes, axis)
		}
	}
	b.mu.RUnlock()
	for _, axis := range axes {
		b.ClearZoom(axis)
	}
}

// Group returns a copy of the group state for axis.
func (b *SyncBus) Group(axis string) SyncGroup {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.groups[axis]
	if !ok {
		return SyncGroup{Axis: axis}
	}
	return SyncGroup{Axis: g.Axis, Origin: g.Origin, Zoom: g.Zoom.Clone()}
}

func (b *SyncBus) Camera() CameraState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.camera.Clone()
}

func (b *SyncBus) groupLocked(axis string) *SyncGroup {
	g, ok := b.groups[axis]
	if !ok {
		g = &SyncGroup{Axis: axis}
		b.groups[axis] = g
	}
	return g
}

func (b *SyncBus) axisTargetsLocked(axis string, except PanelID) []Subscriber {
	var out []Subscriber
	for _, s := range b.subs {
		if s.id == except {
			continue
		}
		if s.sub.AxisLabel() == axis {
			out = append(out, s.sub)
		}
	}
	return out
}

// PublishZoom records zoom for the axis group. The first panel to publish a
// non-nil zoom becomes the group's origin; while zoom sync is on, publishes
// from any other panel fail with ErrSyncConflict until the group is cleared.
// A nil zoom from the origin clears the group, and a nil zoom into a group
// without an origin changes nothing.
func (b *SyncBus) PublishZoom(id PanelID, zoom *ZoomRange, axis string) error {
	if zoom == nil {
		b.mu.RLock()
		g, ok := b.groups[axis]
		isOrigin := ok && g.Origin == id
		b.mu.RUnlock()
		if isOrigin {
			b.ClearZoom(axis)
			return nil
		}
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	g := b.groupLocked(axis)
	if g.Origin == "" {
		if zoom == nil {
			b.mu.Unlock()
			return nil
		}
		g.Origin = id
	}
	if b.zoomSync && g.Origin != id {
		origin := g.Origin
		b.mu.Unlock()
		log.Printf("[SYNC] Dropping zoom from %s on %q: origin is %s", id, axis, origin)
		return fmt.Errorf("%w (axis %q, origin %s)", ErrSyncConflict, axis, origin)
	}
	g.Zoom = zoom.Clone()
	var targets []Subscriber
	if b.zoomSync {
		targets = b.axisTargetsLocked(axis, id)
	}
	b.mu.Unlock()

	for _, t := range targets {
		t.ApplyZoom(axis, zoom.Clone())
	}
	return nil
}

// ClearZoom resets the group's origin and zoom; every panel on the axis
// reverts to autorange.
func (b *SyncBus) ClearZoom(axis string) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	g := b.groupLocked(axis)
	g.Origin = ""
	g.Zoom = nil
	targets := b.axisTargetsLocked(axis, "")
	b.mu.Unlock()

	for _, t := range targets {
		t.ApplyZoom(axis, nil)
	}
}

// PublishCamera shares cam with every other panel when camera sync is on.
// It reports whether the state was shared.
func (b *SyncBus) PublishCamera(id PanelID, cam CameraState) bool {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if !b.cameraSync {
		b.mu.Unlock()
		return false
	}
	b.camera = cam.Clone()
	var targets []Subscriber
	for _, s := range b.subs {
		if s.id != id {
			targets = append(targets, s.sub)
		}
	}
	b.mu.Unlock()

	for _, t := range targets {
		t.ApplyCamera(cam.Clone())
	}
	return true
}

// ResetCamera clears the shared camera. With camera sync on, every panel is
// reset as well.
func (b *SyncBus) ResetCamera() {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	b.camera = CameraState{}
	var targets []Subscriber
	if b.cameraSync {
		for _, s := range b.subs {
			targets = append(targets, s.sub)
		}
	}
	b.mu.Unlock()

	for _, t := range targets {
		t.ApplyCamera(CameraState{})
	}
}
