package viewer

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// captureFrame writes the window contents to CaptureDir as a PNG. Encoding
// happens off the game loop.
func (v *Viewer) captureFrame(img *ebiten.Image, suffix string, timestamp time.Time) {
	if v.CaptureDir == "" {
		log.Printf("[VIEWER] Capture requested but no capture directory is configured")
		return
	}
	if err := os.MkdirAll(v.CaptureDir, 0o755); err != nil {
		log.Printf("[VIEWER] Error creating capture directory: %v", err)
		return
	}

	step := 0
	if v.gallery != nil {
		step = v.gallery.Session().CurrentStep()
	}
	path := filepath.Join(v.CaptureDir, captureName(timestamp, step, suffix))

	rgba := image.NewRGBA(img.Bounds())
	img.ReadPixels(rgba.Pix)

	go func() {
		if err := writePNG(path, rgba); err != nil {
			log.Printf("[VIEWER] Error writing capture: %v", err)
			return
		}
		log.Printf("[VIEWER] Captured frame: %s", path)
	}()
}

func captureName(timestamp time.Time, step int, suffix string) string {
	return fmt.Sprintf("gallery-%s-step%06d-%s.png", timestamp.Format("20060102-150405"), step, suffix)
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
