// Package render turns merged country rows into a choropleth figure and
// serializes it for the browser (Plotly.js) or as a static image.
package render

import (
	"fmt"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Canvas and patch styling.
const (
	Width     = 725
	Height    = 500
	FillAlpha = 0.7
	LineColor = "black"
	LineWidth = 0.5

	// MissingLabel is shown in tooltips for countries without statistics.
	MissingLabel = "???"
)

// Tools are the interactions enabled on the map.
var Tools = []string{"pan", "wheel_zoom", "reset", "hover", "save"}

// Feature property keys.
const (
	PropCountry       = "country"
	PropCountryCode   = "country_code"
	PropCapacity      = "capacity"
	PropPlants        = "plants"
	PropFill          = "fill"
	PropCapacityLabel = "capacity_label"
	PropPlantsLabel   = "plants_label"
)

const (
	colorBarTicks     = 10
	firstIndexedTick  = 2
	lastIndexedTick   = 8
	colorBarWidth     = 600
	colorBarHeight    = 30
	colorBarStandoff  = 5
	colorBarLocationX = 20
	colorBarLocationY = 0
)

// Tooltip is one hover line: a label and the feature property it shows.
type Tooltip struct {
	Label    string
	Property string
}

// Tooltips lists the hover lines in display order.
var Tooltips = []Tooltip{
	{Label: "Country", Property: PropCountry},
	{Label: "Daily capacity", Property: PropCapacityLabel},
	{Label: "Operational plants", Property: PropPlantsLabel},
}

// ColorBar describes the horizontal legend below the map.
type ColorBar struct {
	Width         int
	Height        int
	LabelStandoff int
	X, Y          int
	TickValues    []float64
	TickLabels    []string
}

// Figure is everything needed to draw the map. It holds no I/O handles.
type Figure struct {
	Width    int
	Height   int
	Tools    []string
	Tooltips []Tooltip
	Mapper   ColorMapper
	ColorBar ColorBar
	Rows     []domain.MergedRow
	Features *geojson.FeatureCollection
}

var printer = message.NewPrinter(language.English)

// NewFigure builds the choropleth for rows. The colour range spans the
// smallest to the largest aggregate capacity.
func NewFigure(rows []domain.MergedRow, aggs []domain.CountryAggregate, palette string) (*Figure, error) {
	if palette == "" {
		palette = DefaultPalette
	}
	low, high, _ := domain.CapacityRange(aggs)
	mapper, err := NewColorMapper(palette, PaletteSize, float64(low), float64(high))
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for i, r := range rows {
		f := geojson.NewFeature(r.Geometry)
		f.ID = i
		f.Properties = geojson.Properties{
			PropCountry:       r.Country,
			PropCountryCode:   r.CountryCode,
			PropCapacity:      nil,
			PropPlants:        nil,
			PropFill:          mapper.Hex(r.Capacity),
			PropCapacityLabel: CapacityLabel(r.Capacity),
			PropPlantsLabel:   PlantsLabel(r.Plants),
		}
		if r.Capacity != nil {
			f.Properties[PropCapacity] = *r.Capacity
		}
		if r.Plants != nil {
			f.Properties[PropPlants] = *r.Plants
		}
		fc.Append(f)
	}

	return &Figure{
		Width:    Width,
		Height:   Height,
		Tools:    Tools,
		Tooltips: Tooltips,
		Mapper:   mapper,
		ColorBar: newColorBar(mapper),
		Rows:     rows,
		Features: fc,
	}, nil
}

// CapacityLabel formats a daily capacity as "$12,345.0", or MissingLabel.
func CapacityLabel(v *int64) string {
	if v == nil {
		return MissingLabel
	}
	return printer.Sprintf("$%.1f", float64(*v))
}

// PlantsLabel formats a plant count, or MissingLabel.
func PlantsLabel(v *int) string {
	if v == nil {
		return MissingLabel
	}
	return printer.Sprintf("%d", *v)
}

func newColorBar(m ColorMapper) ColorBar {
	cb := ColorBar{
		Width:         colorBarWidth,
		Height:        colorBarHeight,
		LabelStandoff: colorBarStandoff,
		X:             colorBarLocationX,
		Y:             colorBarLocationY,
		TickValues:    make([]float64, colorBarTicks),
		TickLabels:    make([]string, colorBarTicks),
	}
	step := (m.High - m.Low) / float64(colorBarTicks-1)
	for i := range colorBarTicks {
		v := m.Low + step*float64(i)
		cb.TickValues[i] = v
		if i >= firstIndexedTick && i <= lastIndexedTick {
			cb.TickLabels[i] = fmt.Sprintf("Index %d", i)
			continue
		}
		cb.TickLabels[i] = printer.Sprintf("%.0f", v)
	}
	return cb
}
