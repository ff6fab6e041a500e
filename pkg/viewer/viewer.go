// Package viewer is the ebiten rendering backend of the gallery. Each panel
// gets a Surface inside one window; Update drains the gallery's render queue
// and forwards pointer input to the panels' interaction handlers.
package viewer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

var ErrNoCapacity = errors.New("viewer has no room for another panel")

type Viewer struct {
	Width, Height int

	// MaxSurfaces caps the number of panels; zero means unlimited.
	MaxSurfaces int
	// PlayInterval is the delay between steps while the gallery plays.
	PlayInterval time.Duration
	// CaptureDir receives PNG snapshots of the window.
	CaptureDir string
	// Done ends the game loop when closed.
	Done <-chan struct{}

	gallery *gallery.Gallery

	mu       sync.Mutex
	surfaces []*Surface

	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource
	whiteImage *ebiten.Image

	container   [2]int
	input       inputState
	lastAdvance time.Time
	captureNext bool
}

func NewViewer(width, height int) *Viewer {
	v := &Viewer{
		Width:        width,
		Height:       height,
		PlayInterval: 500 * time.Millisecond,
	}

	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		log.Printf("[VIEWER] Failed to load font: %v", err)
	} else {
		v.fontSource = s
	}
	m, err := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if err != nil {
		log.Printf("[VIEWER] Failed to load mono font: %v", err)
	} else {
		v.monoSource = m
	}
	return v
}

// Attach connects the viewer to the gallery it renders.
func (v *Viewer) Attach(g *gallery.Gallery) {
	v.gallery = g
}

func (v *Viewer) CreateSurface(id gallery.PanelID) (gallery.Surface, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.MaxSurfaces > 0 && len(v.surfaces) >= v.MaxSurfaces {
		return nil, ErrNoCapacity
	}
	s := newSurface(id)
	v.surfaces = append(v.surfaces, s)
	return s, nil
}

func (v *Viewer) RemoveSurface(gs gallery.Surface) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, s := range v.surfaces {
		if gallery.Surface(s) == gs {
			v.surfaces = append(v.surfaces[:i], v.surfaces[i+1:]...)
			return
		}
	}
}

func (v *Viewer) Surfaces() []*Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*Surface(nil), v.surfaces...)
}

// surfaceAt returns the surface under a screen point, if any.
func (v *Viewer) surfaceAt(x, y float64) *Surface {
	for _, s := range v.Surfaces() {
		if r := s.Rect(); !r.Empty() && Contains(r, x, y) {
			return s
		}
	}
	return nil
}

// syncContainer tells the gallery about a changed window size.
func (v *Viewer) syncContainer() {
	if v.gallery == nil || v.Width <= 0 || v.Height <= 0 {
		return
	}
	if v.container == [2]int{v.Width, v.Height} {
		return
	}
	v.container = [2]int{v.Width, v.Height}
	v.gallery.SetContainer(gallery.Rect{Width: float64(v.Width), Height: float64(v.Height - statusHeight)})
}

// advance moves playback forward once per PlayInterval. At the last step
// the gallery pauses.
func (v *Viewer) advance(now time.Time) {
	if v.gallery == nil || v.PlayInterval <= 0 {
		return
	}
	session := v.gallery.Session()
	if session.Paused() {
		v.lastAdvance = now
		return
	}
	if now.Sub(v.lastAdvance) < v.PlayInterval {
		return
	}
	v.lastAdvance = now
	next, ok := v.gallery.AdjacentStep(1)
	if !ok {
		session.SetPaused(true)
		return
	}
	v.gallery.SetTimeStep(next)
}

func (v *Viewer) Update() error {
	select {
	case <-v.Done:
		return ebiten.Termination
	default:
	}
	if v.gallery == nil {
		return nil
	}
	v.syncContainer()
	for _, s := range v.Surfaces() {
		s.place(v.Width, v.Height-statusHeight)
	}
	v.handleKeys()
	v.handlePointer(time.Now())
	v.advance(time.Now())
	v.gallery.Tick()
	return nil
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(ColorBackground)
	hovered := v.surfaceAt(cursor())
	for _, s := range v.Surfaces() {
		v.drawSurface(screen, s, s == hovered)
	}
	v.drawSelection(screen)
	v.drawStatus(screen)

	if v.captureNext {
		v.captureNext = false
		v.captureFrame(screen, "gallery", time.Now())
	}
}

// Layout follows the window size so panels fill a resized window.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		v.Width, v.Height = outsideWidth, outsideHeight
	}
	return v.Width, v.Height
}

func (v *Viewer) white() *ebiten.Image {
	if v.whiteImage == nil {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		v.whiteImage = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	}
	return v.whiteImage
}

// requestDetail asks the host application for the panel's detail view.
func (v *Viewer) requestDetail(id gallery.PanelID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := v.gallery.RequestDetail(ctx, id); err != nil {
			log.Printf("[VIEWER] Detail request for panel %s failed: %v", id, err)
		}
	}()
}
