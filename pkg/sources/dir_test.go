package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "psi", "10.json"), `{"data":[],"layout":{}}`)
	writeFile(t, filepath.Join(root, "psi", "2.json"), `{"data":[],"layout":{}}`)
	writeFile(t, filepath.Join(root, "psi", "notes.txt"), "ignored")
	if err := d.WriteFrame("psi", 5, frames.ContentTypeMsgpack, []byte{0x80}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	ts, err := d.Timesteps(ctx, "psi")
	if err != nil {
		t.Fatalf("Timesteps failed: %v", err)
	}
	want := gallery.Timesteps{Steps: []int{2, 5, 10}, Time: []float64{2, 5, 10}}
	if diff := cmp.Diff(want, ts); diff != "" {
		t.Errorf("derived steps (-want +got):\n%s", diff)
	}

	writeFile(t, filepath.Join(root, "psi", "timesteps.json"), `{"steps":[2,5,10],"time":[0.1,0.2,0.3]}`)
	ts, err = d.Timesteps(ctx, "psi")
	if err != nil || ts.Time[2] != 0.3 {
		t.Errorf("explicit timesteps = %+v, %v", ts, err)
	}

	ct, body, err := d.Frame(ctx, "psi", 5)
	if err != nil || ct != frames.ContentTypeMsgpack || len(body) != 1 {
		t.Errorf("Frame(5) = %q, %v, %v", ct, body, err)
	}
	if ct, _, _ := d.Frame(ctx, "psi", 2); ct != frames.ContentTypeJSON {
		t.Errorf("Frame(2) content type = %q", ct)
	}
	if _, _, err := d.Frame(ctx, "psi", 3); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := d.Frame(ctx, "../etc", 1); err == nil {
		t.Errorf("expected error for an item id escaping the root")
	}

	if name, _ := d.ItemName(ctx, "psi"); name != "psi" {
		t.Errorf("ItemName without meta = %q", name)
	}
	writeFile(t, filepath.Join(root, "psi", "meta.json"), `{"name":"Poloidal flux"}`)
	if name, _ := d.ItemName(ctx, "psi"); name != "Poloidal flux" {
		t.Errorf("ItemName = %q", name)
	}

	items, err := d.Items()
	if err != nil || len(items) != 1 || items[0] != "psi" {
		t.Errorf("Items = %v, %v", items, err)
	}
}

func TestDirWatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "psi", "1.json"), `{}`)
	d := NewDir(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- d.Watch(ctx, 50*time.Millisecond, func(items []string) { changes <- items })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "psi", "2.json"), `{}`)
	writeFile(t, filepath.Join(root, "psi", "3.json"), `{}`)

	select {
	case items := <-changes:
		if diff := cmp.Diff([]string{"psi"}, items); diff != "" {
			t.Errorf("changed items (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch returned %v", err)
	}
}
