package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/sudorandom/sim-gallery/pkg/frames"
	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/hostbus"
	"github.com/sudorandom/sim-gallery/pkg/sources"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

const separator = "--------------------------------------------------"

// Globals are the flags shared by every subcommand.
type Globals struct {
	BaseURL string        `help:"Data service base URL." default:"http://localhost:5000/api/v1" name:"base-url"`
	ItemURL string        `help:"Item metadata URL, if different from the base URL." name:"item-url"`
	Token   string        `help:"Data service token." env:"GALLERY_TOKEN"`
	Dir     string        `help:"Read items from a local directory instead of the data service." type:"path"`
	Timeout time.Duration `help:"Request timeout." default:"30s"`

	out io.Writer
}

func (g *Globals) source() gallery.DataSource {
	if g.Dir != "" {
		return sources.NewDir(g.Dir)
	}
	return sources.NewHTTP(g.BaseURL, g.ItemURL, g.Token, g.Timeout)
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

type CLI struct {
	Globals

	Timesteps TimestepsCmd `cmd:"" help:"List the time steps of an item."`
	Frame     FrameCmd     `cmd:"" help:"Fetch and decode one frame."`
	Cache     CacheCmd     `cmd:"" help:"Inspect the disk frame cache."`
	Events    EventsCmd    `cmd:"" help:"Print events from a running viewer."`
	Send      SendCmd      `cmd:"" help:"Send a command to a running viewer."`
}

type TimestepsCmd struct {
	Item string `arg:"" help:"Item id."`
}

func (c *TimestepsCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()
	src := g.source()
	ts, err := src.Timesteps(ctx, c.Item)
	if err != nil {
		return err
	}
	return printTimesteps(g.writer(), c.Item, ts)
}

func printTimesteps(w io.Writer, item string, ts gallery.Timesteps) error {
	fmt.Fprintf(w, "Item %s: %d steps\n", item, len(ts.Steps))
	fmt.Fprintln(w, separator)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tTIME")
	for i, s := range ts.Steps {
		t := "-"
		if i < len(ts.Time) {
			t = fmt.Sprintf("%g", ts.Time[i])
		}
		fmt.Fprintf(tw, "%d\t%s\n", s, t)
	}
	return tw.Flush()
}

type FrameCmd struct {
	Item string `arg:"" help:"Item id."`
	Step int    `arg:"" help:"Time step."`
	Out  string `help:"Also write the raw payload to this file." type:"path"`
}

func (c *FrameCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()
	contentType, body, err := g.source().Frame(ctx, c.Item, c.Step)
	if err != nil {
		return err
	}
	if c.Out != "" {
		if err := os.WriteFile(c.Out, body, 0o644); err != nil {
			return err
		}
	}
	f, err := frames.NewDispatcher().Classify(c.Step, body, contentType)
	if err != nil {
		return err
	}
	f.ItemID = c.Item
	summarize(g.writer(), f, contentType, len(body))
	return nil
}

// summarize prints what the gallery would render for a decoded frame.
func summarize(w io.Writer, f *frames.Frame, contentType string, size int) {
	fmt.Fprintf(w, "Item %s step %d\n", f.ItemID, f.Step)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Content type:  %s\n", contentType)
	fmt.Fprintf(w, "Payload:       %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "Kind:          %s\n", f.Kind)
	fmt.Fprintf(w, "X axis:        %q\n", f.XAxisLabel())

	switch f.Kind {
	case frames.KindChart:
		c := f.Chart
		points := 0
		for _, s := range c.Data {
			points += min(len(s.X), len(s.Y))
		}
		fmt.Fprintf(w, "Series:        %d (%s points)\n", len(c.Data), humanize.Comma(int64(points)))
		fmt.Fprintf(w, "Y axis:        %q\n", c.Layout.YAxis.Title.Text)
		if x0, x1, ok := c.XExtent(); ok {
			fmt.Fprintf(w, "X extent:      [%g, %g]\n", x0, x1)
		}
		if y0, y1, ok := c.YExtent(); ok {
			fmt.Fprintf(w, "Y extent:      [%g, %g]\n", y0, y1)
		}
	case frames.KindMesh:
		m := f.Mesh
		b := m.Bounds()
		r := m.ScalarRange()
		fmt.Fprintf(w, "Nodes:         %s\n", humanize.Comma(int64(len(m.Nodes))))
		fmt.Fprintf(w, "Triangles:     %s\n", humanize.Comma(int64(len(m.Triangles))))
		fmt.Fprintf(w, "Bounds:        x [%g, %g] y [%g, %g]\n", b[0], b[1], b[2], b[3])
		fmt.Fprintf(w, "Scalar range:  [%g, %g] %s\n", r[0], r[1], m.ColorLabel)
	}
}

type CacheCmd struct {
	Ls    CacheLsCmd    `cmd:"" help:"List stored frames."`
	Purge CachePurgeCmd `cmd:"" help:"Delete stored frames."`
}

type CacheLsCmd struct {
	Path string `help:"Cache directory." default:"data/cache" type:"path"`
	Item string `arg:"" optional:"" help:"Only list this item."`
}

func (c *CacheLsCmd) Run(g *Globals) error {
	store, err := utils.OpenFrameStore(c.Path, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}()
	stored, err := store.Frames(c.Item)
	if err != nil {
		return err
	}
	return printStored(g.writer(), stored)
}

func printStored(w io.Writer, stored []utils.StoredFrame) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tSTEP\tTYPE\tSIZE")
	total := 0
	for _, f := range stored {
		total += f.Size
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Item, f.Step, f.ContentType, humanize.Bytes(uint64(f.Size)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "%d frames, %s\n", len(stored), humanize.Bytes(uint64(total)))
	return nil
}

type CachePurgeCmd struct {
	Path string `help:"Cache directory." default:"data/cache" type:"path"`
	Item string `arg:"" optional:"" help:"Only purge this item."`
}

func (c *CachePurgeCmd) Run(g *Globals) error {
	store, err := utils.OpenFrameStore(c.Path, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}()
	n, err := store.Delete(utils.FramePrefix(c.Item))
	if err != nil {
		return err
	}
	fmt.Fprintf(g.writer(), "Deleted %d frames\n", n)
	return nil
}

type EventsCmd struct {
	URL string `arg:"" help:"Viewer event websocket, e.g. ws://localhost:8090/events."`
}

func (c *EventsCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	w := g.writer()
	err := hostbus.Listen(ctx, c.URL, func(m hostbus.Message) {
		fmt.Fprintf(w, "%s %-15s %s\n", m.Time.Format(time.RFC3339), m.Event, m.Payload)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type SendCmd struct {
	URL   string `arg:"" help:"Viewer event websocket."`
	Type  string `arg:"" enum:"open,step,pause,zoom-sync,camera-sync,time-selector" help:"Command type."`
	Panel string `help:"Panel id."`
	Item  string `help:"Item id."`
	Step  int    `help:"Time step."`
	On    bool   `help:"Enable the toggle."`
}

func (c *SendCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()
	return hostbus.Send(ctx, c.URL, hostbus.Command{
		Type:    c.Type,
		PanelID: c.Panel,
		ItemID:  c.Item,
		Step:    c.Step,
		On:      c.On,
	})
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("frame-probe"),
		kong.Description("Inspect simulation frames, the frame cache and running viewers."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
