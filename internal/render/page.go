package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/google/uuid"
)

// JSPage is the client-side renderer the page loads.
const JSPage = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// PageTitle heads the plot page.
const PageTitle = "Desalination capacity by country"

//go:embed templates/plot.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/plot.html"))

// Components are the embeddable pieces of a figure: a script that draws it,
// the div it draws into, and the library the script needs.
type Components struct {
	ID     string
	Script template.JS
	Div    template.HTML
	JSPage string
}

const scriptFormat = `(function() {
  var geojson = %s;
  var data = %s;
  data.forEach(function(trace) { trace.geojson = geojson; });
  Plotly.newPlot(%s, data, %s, %s);
})();`

// Embed serializes fig into Components under a fresh element id.
// json.Marshal escapes <, > and &, so the output is safe inside a script element.
func Embed(fig *Figure) (Components, error) {
	id := uuid.NewString()
	spec := fig.Plotly()

	parts := make([][]byte, 0, 5)
	for _, v := range []any{fig.Features, spec.Data, id, spec.Layout, spec.Config} {
		b, err := json.Marshal(v)
		if err != nil {
			return Components{}, fmt.Errorf("serialize figure: %w", err)
		}
		parts = append(parts, b)
	}

	script := fmt.Sprintf(scriptFormat, parts[0], parts[1], parts[2], parts[3], parts[4])
	div := fmt.Sprintf(`<div id="%s" class="choropleth" style="width:%dpx;height:%dpx"></div>`, id, fig.Width, fig.Height)

	return Components{
		ID:     id,
		Script: template.JS(script), //nolint:gosec // JSON-encoded figure data
		Div:    template.HTML(div),  //nolint:gosec // id is a generated UUID
		JSPage: JSPage,
	}, nil
}

// Page is the data rendered into the plot template.
type Page struct {
	Components
	Title       string
	SourceURL   string
	GeneratedAt time.Time
}

// WritePage renders the plot page.
func WritePage(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = PageTitle
	}
	if err := pageTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
