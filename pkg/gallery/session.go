package gallery

import "sync"

// Session is the state shared by every panel of one visualization session.
// Zoom and camera live on the SyncBus; step watermarks and renderer counts
// are only changed by the Gallery.
type Session struct {
	Sync *SyncBus

	mu            sync.RWMutex
	currentStep   int
	minStep       int
	maxStep       int
	meshRenderers int
	visiblePanels int
	paused        bool
	timeSelector  bool
	itemRanges    map[string][2]float64
}

func NewSession() *Session {
	return &Session{
		Sync:       NewSyncBus(),
		itemRanges: make(map[string][2]float64),
	}
}

func (s *Session) CurrentStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentStep
}

func (s *Session) MinStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minStep
}

// MaxStep is the highest step observed by any successful fetch.
func (s *Session) MaxStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxStep
}

// MeshRenderers is the number of panels currently showing a mesh.
func (s *Session) MeshRenderers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meshRenderers
}

func (s *Session) VisiblePanels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visiblePanels
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Session) SetPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = p
}

// TimeSelectorMode enables picking a time step by clicking a time-axis plot.
func (s *Session) TimeSelectorMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeSelector
}

func (s *Session) SetTimeSelectorMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeSelector = on
}

// ItemRange returns a fixed y range for charts of item, if one was set.
func (s *Session) ItemRange(item string) ([2]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.itemRanges[item]
	return r, ok
}

func (s *Session) SetItemRange(item string, r [2]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemRanges[item] = r
}

func (s *Session) ClearItemRange(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.itemRanges, item)
}

// ClampStep limits step to the observed [min, max] watermarks.
func (s *Session) ClampStep(step int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.maxStep > 0 && step > s.maxStep {
		step = s.maxStep
	}
	if step < s.minStep {
		step = s.minStep
	}
	return step
}

func (s *Session) setCurrentStep(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = step
}

func (s *Session) raiseMaxStep(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step > s.maxStep {
		s.maxStep = step
	}
}

func (s *Session) raiseMinStep(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step > s.minStep {
		s.minStep = step
	}
}

func (s *Session) addMeshRenderers(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshRenderers += delta
	if s.meshRenderers < 0 {
		s.meshRenderers = 0
	}
}

func (s *Session) addVisiblePanels(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visiblePanels += delta
}
