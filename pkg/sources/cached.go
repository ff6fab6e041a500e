package sources

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

// Cached keeps raw payloads from Upstream in a FrameStore. Frames are served
// from disk once stored; step lists are refreshed from Upstream and only read
// from disk when Upstream fails.
type Cached struct {
	Upstream gallery.DataSource
	Store    *utils.FrameStore
}

func NewCached(upstream gallery.DataSource, store *utils.FrameStore) *Cached {
	return &Cached{Upstream: upstream, Store: store}
}

func (c *Cached) Timesteps(ctx context.Context, itemID string) (gallery.Timesteps, error) {
	ts, err := c.Upstream.Timesteps(ctx, itemID)
	if err == nil {
		if raw, merr := json.Marshal(ts); merr == nil {
			if perr := c.Store.PutTimesteps(itemID, raw); perr != nil {
				log.Printf("[CACHE] Failed to store steps for %s: %v", itemID, perr)
			}
		}
		return ts, nil
	}
	if ctx.Err() != nil {
		return gallery.Timesteps{}, err
	}

	raw, serr := c.Store.GetTimesteps(itemID)
	if serr != nil {
		return gallery.Timesteps{}, err
	}
	var stored gallery.Timesteps
	if jerr := json.Unmarshal(raw, &stored); jerr != nil {
		return gallery.Timesteps{}, err
	}
	log.Printf("[CACHE] Using stored steps for %s: %v", itemID, err)
	return stored, nil
}

func (c *Cached) Frame(ctx context.Context, itemID string, step int) (string, []byte, error) {
	contentType, body, err := c.Store.GetFrame(itemID, step)
	if err == nil {
		return contentType, body, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		log.Printf("[CACHE] Read of %s step %d failed: %v", itemID, step, err)
	}

	contentType, body, err = c.Upstream.Frame(ctx, itemID, step)
	if err != nil {
		return "", nil, err
	}
	if err := c.Store.PutFrame(itemID, step, contentType, body); err != nil {
		log.Printf("[CACHE] Failed to store %s step %d: %v", itemID, step, err)
	} else {
		log.Printf("[CACHE] Stored %s step %d (%s)", itemID, step, humanize.Bytes(uint64(len(body))))
	}
	return contentType, body, nil
}

func (c *Cached) ItemName(ctx context.Context, itemID string) (string, error) {
	return c.Upstream.ItemName(ctx, itemID)
}
