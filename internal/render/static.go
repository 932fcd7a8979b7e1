package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// staticFillAlpha is FillAlpha on the 0-255 scale.
var staticFillAlpha = uint8(math.Round(FillAlpha * 255))

// StaticPlot draws the figure's polygons with gonum/plot. Fills use the same
// colour mapper as the interactive page.
func StaticPlot(fig *Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = PageTitle
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.HideAxes()

	for _, r := range fig.Rows {
		fill := fig.Mapper.Color(r.Capacity)
		fill.A = staticFillAlpha

		for _, poly := range r.Geometry {
			rings := make([]plotter.XYer, 0, len(poly))
			for _, ring := range poly {
				if len(ring) < 3 {
					continue
				}
				xys := make(plotter.XYs, len(ring))
				for i, pt := range ring {
					xys[i].X, xys[i].Y = pt.X(), pt.Y()
				}
				rings = append(rings, xys)
			}
			if len(rings) == 0 {
				continue
			}

			patch, err := plotter.NewPolygon(rings...)
			if err != nil {
				return nil, fmt.Errorf("polygon for %s: %w", r.Country, err)
			}
			patch.Color = fill
			patch.LineStyle.Color = color.Black
			patch.LineStyle.Width = vg.Points(LineWidth)
			p.Add(patch)
		}
	}
	return p, nil
}

// WriteImage renders the figure to w in the given format (png, svg, pdf, ...).
func WriteImage(w io.Writer, fig *Figure, format string) error {
	p, err := StaticPlot(fig)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(vg.Points(float64(fig.Width)), vg.Points(float64(fig.Height)), format)
	if err != nil {
		return fmt.Errorf("image format %q: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// SaveImage writes the figure to path, choosing the format from its extension.
func SaveImage(path string, fig *Figure) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "" {
		return fmt.Errorf("image path %s has no extension", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteImage(f, fig, format); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
