package wikipedia

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/desalination-map/internal/domain"
)

// noise is removed before reading cell text: footnote markers, hidden sort
// keys and inline styles.
const noise = "sup.reference, span.sortkey, style, [style*='display:none']"

// ClassSelector turns a class attribute value ("wikitable sortable") into a
// CSS selector matching tables that carry every listed class.
func ClassSelector(class string) string {
	return "table." + strings.Join(strings.Fields(class), ".")
}

// ExtractTable parses the first table whose class attribute contains every
// class in class. The header is the first row made only of th cells; each
// later row containing a td cell becomes a data row. rowspan and colspan are
// expanded so every row has one value per header column.
func ExtractTable(html []byte, class string) (domain.Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Table{}, fmt.Errorf("parse html: %w: %w", domain.ErrParse, err)
	}

	table := doc.Find(ClassSelector(class)).First()
	if table.Length() == 0 {
		return domain.Table{}, fmt.Errorf("table with class %q: %w", class, domain.ErrNotFound)
	}
	table.Find(noise).Remove()

	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})

	var out domain.Table
	grid := newSpanGrid()
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}
		values := grid.expand(cells)

		isHeader := cells.Filter("td").Length() == 0
		switch {
		case isHeader && out.Columns == nil:
			out.Columns = values
		case isHeader:
			// Repeated or secondary header rows carry no plant data.
		case allEmpty(values):
		default:
			out.Rows = append(out.Rows, values)
		}
	})

	if out.Columns == nil {
		return domain.Table{}, fmt.Errorf("header row in table %q: %w", class, domain.ErrNotFound)
	}
	return out, nil
}

// spanGrid carries rowspan cells down into the rows below them.
type spanGrid struct {
	pending map[int]*spanCell
}

type spanCell struct {
	text      string
	remaining int
}

func newSpanGrid() *spanGrid {
	return &spanGrid{pending: make(map[int]*spanCell)}
}

func (g *spanGrid) expand(cells *goquery.Selection) []string {
	var row []string
	col := 0

	fill := func() {
		for {
			p, ok := g.pending[col]
			if !ok {
				return
			}
			row = append(row, p.text)
			p.remaining--
			if p.remaining == 0 {
				delete(g.pending, col)
			}
			col++
		}
	}

	cells.Each(func(_ int, c *goquery.Selection) {
		fill()
		text := cellText(c)
		colspan := spanAttr(c, "colspan", maxColspan)
		rowspan := spanAttr(c, "rowspan", maxRowspan)
		for range colspan {
			row = append(row, text)
			if rowspan > 1 {
				g.pending[col] = &spanCell{text: text, remaining: rowspan - 1}
			}
			col++
		}
	})

	// Spans past the last explicit cell still consume this row.
	last := -1
	for c := range g.pending {
		last = max(last, c)
	}
	for col <= last {
		if _, ok := g.pending[col]; ok {
			fill()
			continue
		}
		row = append(row, "")
		col++
	}

	return row
}

func cellText(c *goquery.Selection) string {
	return strings.Join(strings.Fields(c.Text()), " ")
}

// Span limits browsers apply to colspan and rowspan.
const (
	maxColspan = 1000
	maxRowspan = 65534
)

func spanAttr(c *goquery.Selection, name string, limit int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.AttrOr(name, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, limit)
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// TableExtractor extracts the table carrying Class from fetched pages.
type TableExtractor struct {
	Class string
}

// Extract implements pipeline.Extractor.
func (e TableExtractor) Extract(html []byte) (domain.Table, error) {
	return ExtractTable(html, e.Class)
}
