package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette/brewer"
)

const (
	// DefaultPalette is the ColorBrewer scheme used when none is configured.
	DefaultPalette = "YlGnBu"
	// PaletteSize is the number of colour bins on the map.
	PaletteSize = 6
	// NaNColor fills countries without statistics.
	NaNColor = "#808080"
)

// ColorMapper maps capacities linearly onto a palette of discrete bins.
// Colors run from the low bin to the high bin.
type ColorMapper struct {
	Colors []color.NRGBA
	Low    float64
	High   float64
}

// NewColorMapper loads size colours of the named ColorBrewer palette in
// reversed order and spans them over [low, high].
func NewColorMapper(name string, size int, low, high float64) (ColorMapper, error) {
	p, err := brewer.GetPalette(brewer.TypeAny, name, size)
	if err != nil {
		return ColorMapper{}, fmt.Errorf("palette %s/%d: %w", name, size, err)
	}
	src := p.Colors()
	colors := make([]color.NRGBA, len(src))
	for i, c := range src {
		colors[len(src)-1-i] = toNRGBA(c)
	}
	return ColorMapper{Colors: colors, Low: low, High: high}, nil
}

// Index returns the palette bin for v. Values outside [Low, High] clamp to
// the first or last bin; a degenerate range maps everything to bin 0.
func (m ColorMapper) Index(v float64) int {
	n := len(m.Colors)
	if n == 0 || m.High <= m.Low || math.IsNaN(v) {
		return 0
	}
	i := int(math.Floor((v - m.Low) / (m.High - m.Low) * float64(n)))
	return min(max(i, 0), n-1)
}

// Color returns the fill for a capacity; nil yields the NaN colour.
func (m ColorMapper) Color(v *int64) color.NRGBA {
	if v == nil || len(m.Colors) == 0 {
		return nanNRGBA
	}
	return m.Colors[m.Index(float64(*v))]
}

// Hex returns Color(v) as #rrggbb.
func (m ColorMapper) Hex(v *int64) string {
	if v == nil || len(m.Colors) == 0 {
		return NaNColor
	}
	return Hex(m.Color(v))
}

// HexColors returns the palette as #rrggbb strings, low bin first.
func (m ColorMapper) HexColors() []string {
	out := make([]string, len(m.Colors))
	for i, c := range m.Colors {
		out[i] = Hex(c)
	}
	return out
}

// Hex formats c as #rrggbb, dropping alpha.
func Hex(c color.Color) string {
	n := toNRGBA(c)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

var nanNRGBA = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

func toNRGBA(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
