package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

// Dir serves items exported to a local directory:
//
//	<root>/<item>/meta.json        {"name": "..."}            optional
//	<root>/<item>/timesteps.json   {"steps": [...], "time": [...]}  optional
//	<root>/<item>/<step>.json      chart document
//	<root>/<item>/<step>.msgpack   mesh envelope
//
// Without timesteps.json the steps are taken from the frame file names and
// each step's time is the step number.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir { return &Dir{Root: root} }

const (
	metaFile      = "meta.json"
	timestepsFile = "timesteps.json"
)

func (d *Dir) itemDir(itemID string) (string, error) {
	if itemID == "" || strings.ContainsAny(itemID, `/\`) || itemID == "." || itemID == ".." {
		return "", fmt.Errorf("invalid item id %q", itemID)
	}
	return filepath.Join(d.Root, itemID), nil
}

// Items lists the item directories under Root.
func (d *Dir) Items() ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (d *Dir) Timesteps(ctx context.Context, itemID string) (gallery.Timesteps, error) {
	dir, err := d.itemDir(itemID)
	if err != nil {
		return gallery.Timesteps{}, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, timestepsFile))
	if err == nil {
		var ts gallery.Timesteps
		if err := json.Unmarshal(raw, &ts); err != nil {
			return gallery.Timesteps{}, fmt.Errorf("%s: %w", timestepsFile, err)
		}
		return ts, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return gallery.Timesteps{}, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return gallery.Timesteps{}, fmt.Errorf("item %s: %w", itemID, utils.ErrNotFound)
	}
	if err != nil {
		return gallery.Timesteps{}, err
	}
	var ts gallery.Timesteps
	for _, e := range entries {
		step, _, ok := parseFrameName(e.Name())
		if !ok {
			continue
		}
		ts.Steps = append(ts.Steps, step)
	}
	sort.Ints(ts.Steps)
	for _, s := range ts.Steps {
		ts.Time = append(ts.Time, float64(s))
	}
	return ts, nil
}

// parseFrameName maps "12.json" and "12.msgpack" to their step and content
// type.
func parseFrameName(name string) (int, string, bool) {
	ext := filepath.Ext(name)
	var contentType string
	switch ext {
	case ".json":
		contentType = frames.ContentTypeJSON
	case ".msgpack":
		contentType = frames.ContentTypeMsgpack
	default:
		return 0, "", false
	}
	step, err := strconv.Atoi(strings.TrimSuffix(name, ext))
	if err != nil {
		return 0, "", false
	}
	return step, contentType, true
}

func (d *Dir) Frame(ctx context.Context, itemID string, step int) (string, []byte, error) {
	dir, err := d.itemDir(itemID)
	if err != nil {
		return "", nil, err
	}
	for _, name := range []string{strconv.Itoa(step) + ".msgpack", strconv.Itoa(step) + ".json"} {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		_, contentType, _ := parseFrameName(name)
		return contentType, body, nil
	}
	return "", nil, fmt.Errorf("item %s step %d: %w", itemID, step, utils.ErrNotFound)
}

func (d *Dir) ItemName(ctx context.Context, itemID string) (string, error) {
	dir, err := d.itemDir(itemID)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return itemID, nil
	}
	if err != nil {
		return "", err
	}
	var meta struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("%s: %w", metaFile, err)
	}
	if meta.Name == "" {
		return itemID, nil
	}
	return meta.Name, nil
}

// WriteFrame exports one frame payload into the directory layout.
func (d *Dir) WriteFrame(itemID string, step int, contentType string, body []byte) error {
	dir, err := d.itemDir(itemID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ext := ".json"
	if contentType == frames.ContentTypeMsgpack || contentType == frames.ContentTypeXMsgpack {
		ext = ".msgpack"
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, strconv.Itoa(step)+ext))
}

// Watch reports items whose files changed. Events are coalesced for debounce
// before onChange is called with the affected item ids. Watch blocks until ctx
// is done.
func (d *Dir) Watch(ctx context.Context, debounce time.Duration, onChange func(items []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Printf("[WATCH] Error closing watcher: %v", err)
		}
	}()

	if err := w.Add(d.Root); err != nil {
		return err
	}
	items, err := d.Items()
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := w.Add(filepath.Join(d.Root, item)); err != nil {
			log.Printf("[WATCH] Cannot watch %s: %v", item, err)
		}
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for item := range pending {
			changed = append(changed, item)
		}
		pending = make(map[string]struct{})
		mu.Unlock()
		if len(changed) == 0 {
			return
		}
		sort.Strings(changed)
		onChange(changed)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WATCH] %v", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			item := d.itemFor(ev.Name)
			if item == "" || strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == filepath.Clean(d.Root) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						log.Printf("[WATCH] Cannot watch %s: %v", item, err)
					}
				}
			}
			mu.Lock()
			pending[item] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(debounce, flush)
			} else {
				timer.Reset(debounce)
			}
			mu.Unlock()
		}
	}
}

// itemFor returns the item a path under Root belongs to.
func (d *Dir) itemFor(path string) string {
	rel, err := filepath.Rel(d.Root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
}
