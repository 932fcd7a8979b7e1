package render

import (
	"fmt"
	"strings"
)

// Trace is a Plotly choropleth trace over the figure's GeoJSON features.
// The GeoJSON itself is attached client side so it is sent only once.
type Trace struct {
	Type          string          `json:"type"`
	Name          string          `json:"name"`
	Locations     []int           `json:"locations"`
	FeatureIDKey  string          `json:"featureidkey"`
	Z             []float64       `json:"z"`
	ZMin          float64         `json:"zmin"`
	ZMax          float64         `json:"zmax"`
	ColorScale    [][2]any        `json:"colorscale"`
	ShowScale     bool            `json:"showscale"`
	CustomData    [][]string      `json:"customdata"`
	HoverTemplate string          `json:"hovertemplate"`
	Marker        Marker          `json:"marker"`
	ColorBar      *PlotlyColorBar `json:"colorbar,omitempty"`
}

// Marker styles the polygon patches.
type Marker struct {
	Opacity float64    `json:"opacity"`
	Line    MarkerLine `json:"line"`
}

// MarkerLine is the patch outline.
type MarkerLine struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// PlotlyColorBar is the legend attached to the data trace.
type PlotlyColorBar struct {
	Orientation       string    `json:"orientation"`
	Len               int       `json:"len"`
	LenMode           string    `json:"lenmode"`
	Thickness         int       `json:"thickness"`
	ThicknessMode     string    `json:"thicknessmode"`
	X                 float64   `json:"x"`
	XAnchor           string    `json:"xanchor"`
	Y                 float64   `json:"y"`
	YAnchor           string    `json:"yanchor"`
	TickLabelStandoff int       `json:"ticklabelstandoff"`
	TickMode          string    `json:"tickmode"`
	TickVals          []float64 `json:"tickvals"`
	TickText          []string  `json:"ticktext"`
	OutlineWidth      float64   `json:"outlinewidth"`
}

// Layout is the Plotly layout object.
type Layout struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DragMode   string  `json:"dragmode,omitempty"`
	HoverMode  any     `json:"hovermode"`
	ShowLegend bool    `json:"showlegend"`
	Margin     Margin  `json:"margin"`
	Geo        GeoAxis `json:"geo"`
}

// Margin is the plot margin in pixels.
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// GeoAxis hides the base map and fits the view to the features.
type GeoAxis struct {
	FitBounds  string `json:"fitbounds"`
	Visible    bool   `json:"visible"`
	Projection struct {
		Type string `json:"type"`
	} `json:"projection"`
}

// Config is the Plotly config object.
type Config struct {
	ScrollZoom     bool       `json:"scrollZoom"`
	DisplayLogo    bool       `json:"displaylogo"`
	DisplayModeBar bool       `json:"displayModeBar"`
	ModeBarButtons [][]string `json:"modeBarButtons"`
}

// PlotlySpec holds the arguments to Plotly.newPlot.
type PlotlySpec struct {
	Data   []Trace
	Layout Layout
	Config Config
}

// toolButtons maps map tools to Plotly mode bar buttons.
// wheel_zoom has no button; it enables scroll zoom.
var toolButtons = map[string]string{
	"pan":   "pan2d",
	"reset": "resetGeo",
	"hover": "hoverClosestGeo",
	"save":  "toImage",
}

// Plotly lays the figure out as two traces: countries without statistics in
// the NaN colour, then countries with statistics through the colour mapper.
func (f *Figure) Plotly() PlotlySpec {
	hover := hoverTemplate(f.Tooltips)

	empty := f.newTrace("no data", hover)
	empty.ColorScale = [][2]any{{0, NaNColor}, {1, NaNColor}}
	filled := f.newTrace("capacity", hover)
	filled.ColorScale = steppedScale(f.Mapper.HexColors())
	filled.ZMin, filled.ZMax = f.Mapper.Low, f.Mapper.High
	if filled.ZMax <= filled.ZMin {
		filled.ZMax = filled.ZMin + 1
	}
	filled.ShowScale = true
	filled.ColorBar = f.plotlyColorBar()

	for i, r := range f.Rows {
		custom := make([]string, len(f.Tooltips))
		for j, t := range f.Tooltips {
			custom[j] = propertyString(f, i, t.Property)
		}
		if !r.HasData() {
			empty.Locations = append(empty.Locations, i)
			empty.Z = append(empty.Z, 0)
			empty.CustomData = append(empty.CustomData, custom)
			continue
		}
		filled.Locations = append(filled.Locations, i)
		filled.Z = append(filled.Z, float64(*r.Capacity))
		filled.CustomData = append(filled.CustomData, custom)
	}

	var data []Trace
	if len(empty.Locations) > 0 {
		data = append(data, empty)
	}
	if len(filled.Locations) > 0 {
		data = append(data, filled)
	}

	layout := Layout{
		Width:  f.Width,
		Height: f.Height,
		Margin: Margin{L: 10, R: 10, T: 10, B: f.ColorBar.Height + 40},
	}
	layout.Geo.FitBounds = "locations"
	layout.Geo.Projection.Type = "equirectangular"
	layout.HoverMode = false

	var config Config
	var buttons []string
	for _, tool := range f.Tools {
		switch tool {
		case "pan":
			layout.DragMode = "pan"
		case "wheel_zoom":
			config.ScrollZoom = true
			continue
		case "hover":
			layout.HoverMode = "closest"
		}
		if b, ok := toolButtons[tool]; ok {
			buttons = append(buttons, b)
		}
	}
	config.DisplayModeBar = len(buttons) > 0
	config.ModeBarButtons = [][]string{buttons}

	return PlotlySpec{Data: data, Layout: layout, Config: config}
}

func (f *Figure) newTrace(name, hover string) Trace {
	return Trace{
		Type:          "choropleth",
		Name:          name,
		FeatureIDKey:  "id",
		Locations:     []int{},
		Z:             []float64{},
		CustomData:    [][]string{},
		HoverTemplate: hover,
		Marker: Marker{
			Opacity: FillAlpha,
			Line:    MarkerLine{Color: LineColor, Width: LineWidth},
		},
	}
}

func (f *Figure) plotlyColorBar() *PlotlyColorBar {
	cb := f.ColorBar
	return &PlotlyColorBar{
		Orientation:       "h",
		Len:               cb.Width,
		LenMode:           "pixels",
		Thickness:         cb.Height,
		ThicknessMode:     "pixels",
		X:                 float64(cb.X) / float64(f.Width),
		XAnchor:           "left",
		Y:                 float64(cb.Y),
		YAnchor:           "top",
		TickLabelStandoff: cb.LabelStandoff,
		TickMode:          "array",
		TickVals:          cb.TickValues,
		TickText:          cb.TickLabels,
	}
}

// steppedScale turns palette bins into a Plotly colorscale with hard edges,
// so values colour exactly as ColorMapper.Index assigns them.
func steppedScale(colors []string) [][2]any {
	n := len(colors)
	scale := make([][2]any, 0, 2*n)
	for i, c := range colors {
		scale = append(scale,
			[2]any{float64(i) / float64(n), c},
			[2]any{float64(i+1) / float64(n), c},
		)
	}
	return scale
}

func hoverTemplate(tooltips []Tooltip) string {
	lines := make([]string, len(tooltips))
	for i, t := range tooltips {
		lines[i] = fmt.Sprintf("%s: %%{customdata[%d]}", t.Label, i)
	}
	return strings.Join(lines, "<br>") + "<extra></extra>"
}

func propertyString(f *Figure, i int, key string) string {
	v, ok := f.Features.Features[i].Properties[key]
	if !ok || v == nil {
		return MissingLabel
	}
	return fmt.Sprint(v)
}
