package sources

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

type countingSource struct {
	frames int
	down   bool
}

func (s *countingSource) Timesteps(ctx context.Context, itemID string) (gallery.Timesteps, error) {
	if s.down {
		return gallery.Timesteps{}, errors.New("connection refused")
	}
	return gallery.Timesteps{Steps: []int{1, 2}, Time: []float64{1, 2}}, nil
}

func (s *countingSource) Frame(ctx context.Context, itemID string, step int) (string, []byte, error) {
	if s.down {
		return "", nil, errors.New("connection refused")
	}
	s.frames++
	return "application/json", []byte(`{"data":[],"layout":{}}`), nil
}

func (s *countingSource) ItemName(ctx context.Context, itemID string) (string, error) {
	return "name", nil
}

func TestCachedSource(t *testing.T) {
	store, err := utils.OpenFrameStore(filepath.Join(t.TempDir(), "cache"), 0)
	if err != nil {
		t.Fatalf("OpenFrameStore failed: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Logf("Error closing store: %v", err)
		}
	}()

	up := &countingSource{}
	c := NewCached(up, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ct, body, err := c.Frame(ctx, "psi", 1)
		if err != nil || ct != "application/json" || len(body) == 0 {
			t.Fatalf("Frame = %q, %q, %v", ct, body, err)
		}
	}
	if up.frames != 1 {
		t.Errorf("upstream fetched %d times, want 1", up.frames)
	}

	if _, err := c.Timesteps(ctx, "psi"); err != nil {
		t.Fatalf("Timesteps failed: %v", err)
	}

	up.down = true
	ts, err := c.Timesteps(ctx, "psi")
	if err != nil {
		t.Fatalf("stored steps not used while upstream is down: %v", err)
	}
	if len(ts.Steps) != 2 {
		t.Errorf("stored steps = %+v", ts)
	}
	if _, err := c.Timesteps(ctx, "unknown"); err == nil {
		t.Errorf("expected upstream error for an item never stored")
	}
	if _, _, err := c.Frame(ctx, "psi", 2); err == nil {
		t.Errorf("expected upstream error for a frame never stored")
	}
	if _, _, err := c.Frame(ctx, "psi", 1); err != nil {
		t.Errorf("stored frame not served while upstream is down: %v", err)
	}
}
