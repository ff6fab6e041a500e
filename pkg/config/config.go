// Package config loads the gallery viewer configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration reads values such as "30s" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const (
	SourceHTTP = "http"
	SourceDir  = "dir"
)

type Config struct {
	Data    DataConfig    `toml:"data"`
	Gallery GalleryConfig `toml:"gallery"`
	Viewer  ViewerConfig  `toml:"viewer"`
	Events  EventsConfig  `toml:"events"`
	Panels  []PanelConfig `toml:"panels"`
}

// DataConfig selects where frames come from. Source is "http" or "dir".
// ItemURL serves item metadata and defaults to BaseURL. An empty CacheDir
// disables the disk cache.
type DataConfig struct {
	Source   string   `toml:"source"`
	BaseURL  string   `toml:"base_url"`
	ItemURL  string   `toml:"item_url"`
	Token    string   `toml:"token"`
	Dir      string   `toml:"dir"`
	Watch    bool     `toml:"watch"`
	Timeout  Duration `toml:"timeout"`
	CacheDir string   `toml:"cache_dir"`
	CacheTTL Duration `toml:"cache_ttl"`
}

type GalleryConfig struct {
	Rows           int      `toml:"rows"`
	Cols           int      `toml:"cols"`
	Gap            float64  `toml:"gap"`
	PrefetchWindow int      `toml:"prefetch_window"`
	MaxStepsLoaded int      `toml:"max_steps_loaded"`
	UnitScale      float64  `toml:"unit_scale"`
	ZoomSync       bool     `toml:"zoom_sync"`
	CameraSync     bool     `toml:"camera_sync"`
	TimeSelector   bool     `toml:"time_selector"`
	StartStep      int      `toml:"start_step"`
	PlayInterval   Duration `toml:"play_interval"`
}

type ViewerConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Title      string `toml:"title"`
	CaptureDir string `toml:"capture_dir"`
}

// EventsConfig configures the host bus. An empty Listen disables it.
type EventsConfig struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

// PanelConfig opens an item in a panel at startup. YRange fixes the chart y
// range for the item.
type PanelConfig struct {
	Item   string    `toml:"item"`
	YRange []float64 `toml:"y_range"`
}

func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:   SourceHTTP,
			BaseURL:  "http://localhost:5000/api/v1",
			Timeout:  Duration{30 * time.Second},
			CacheTTL: Duration{24 * time.Hour},
		},
		Gallery: GalleryConfig{
			Rows:           2,
			Cols:           2,
			Gap:            4,
			PrefetchWindow: 3,
			UnitScale:      0.001,
			PlayInterval:   Duration{500 * time.Millisecond},
		},
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     800,
			Title:      "Simulation Gallery",
			CaptureDir: "data/captures",
		},
		Events: EventsConfig{
			Path: "/events",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Data.Source {
	case SourceHTTP:
		if c.Data.BaseURL == "" {
			errs = append(errs, errors.New("data.base_url is required for the http source"))
		}
	case SourceDir:
		if c.Data.Dir == "" {
			errs = append(errs, errors.New("data.dir is required for the dir source"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source must be %q or %q, got %q", SourceHTTP, SourceDir, c.Data.Source))
	}
	if c.Gallery.Rows < 1 || c.Gallery.Cols < 1 {
		errs = append(errs, fmt.Errorf("gallery grid must be at least 1x1, got %dx%d", c.Gallery.Rows, c.Gallery.Cols))
	}
	if c.Gallery.PrefetchWindow < 0 || c.Gallery.MaxStepsLoaded < 0 {
		errs = append(errs, errors.New("gallery.prefetch_window and gallery.max_steps_loaded must not be negative"))
	}
	if c.Gallery.UnitScale <= 0 {
		errs = append(errs, errors.New("gallery.unit_scale must be positive"))
	}
	if len(c.Panels) > c.Gallery.Rows*c.Gallery.Cols {
		errs = append(errs, fmt.Errorf("%d panels do not fit a %dx%d grid", len(c.Panels), c.Gallery.Rows, c.Gallery.Cols))
	}
	for i, p := range c.Panels {
		if p.Item == "" {
			errs = append(errs, fmt.Errorf("panels[%d].item is required", i))
		}
		if len(p.YRange) != 0 && (len(p.YRange) != 2 || p.YRange[0] >= p.YRange[1]) {
			errs = append(errs, fmt.Errorf("panels[%d].y_range must be [min, max]", i))
		}
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		errs = append(errs, errors.New("viewer size must be positive"))
	}
	return errors.Join(errs...)
}
