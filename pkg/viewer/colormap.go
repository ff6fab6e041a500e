package viewer

import (
	"image/color"
	"math"
)

var (
	ColorBackground = color.RGBA{12, 14, 20, 255}
	ColorPanel      = color.RGBA{0, 0, 0, 100}
	ColorBorder     = color.RGBA{36, 42, 53, 255}
	ColorActive     = color.RGBA{0, 191, 255, 255}
	ColorText       = color.RGBA{255, 255, 255, 255}
	ColorSelection  = color.RGBA{255, 255, 0, 255}
	ColorError      = color.RGBA{255, 50, 50, 255}
)

// seriesColors cycles across chart traces.
var seriesColors = []color.RGBA{
	{0, 191, 255, 255},
	{255, 127, 14, 255},
	{173, 255, 47, 255},
	{255, 50, 50, 255},
	{148, 103, 189, 255},
}

func SeriesColor(i int) color.RGBA {
	return seriesColors[i%len(seriesColors)]
}

// Normalize maps v into [0, 1] over r. A degenerate range maps to 0.5.
func Normalize(v float64, r [2]float64) float64 {
	span := r[1] - r[0]
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return 0.5
	}
	t := (v - r[0]) / span
	return math.Max(0, math.Min(1, t))
}

// Jet returns the jet colormap at t in [0, 1]: blue, cyan, yellow, red.
func Jet(t float64) color.RGBA {
	if math.IsNaN(t) {
		return color.RGBA{128, 128, 128, 255}
	}
	t = math.Max(0, math.Min(1, t))
	r := jetChannel(t - 0.75)
	g := jetChannel(t - 0.5)
	b := jetChannel(t - 0.25)
	return color.RGBA{uint8(r*255 + 0.5), uint8(g*255 + 0.5), uint8(b*255 + 0.5), 255}
}

func jetChannel(d float64) float64 {
	return math.Max(0, math.Min(1, 1.5-4*math.Abs(d)))
}
