// Package export writes pipeline snapshots to offline formats.
package export

import (
	"fmt"
	"io"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the workbook, in tab order.
const (
	SheetAggregates = "Aggregates"
	SheetMerged     = "Merged"
	SheetRejected   = "Rejected"
)

type sheet struct {
	name   string
	header []any
	widths []float64
	rows   [][]any
}

// WriteWorkbook writes snap as an Excel workbook to w.
func WriteWorkbook(w io.Writer, snap domain.Snapshot) error {
	f, err := newWorkbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook writes snap as an Excel workbook at path.
func SaveWorkbook(path string, snap domain.Snapshot) error {
	f, err := newWorkbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func newWorkbook(snap domain.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, s := range sheets(snap) {
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err == nil {
			err = writeSheet(f, s, bold)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	return f, nil
}

func sheets(snap domain.Snapshot) []sheet {
	aggs := sheet{
		name:   SheetAggregates,
		header: []any{"Country", "Daily capacity (m3/day)", "Operational plants"},
		widths: []float64{28, 24, 20},
	}
	for _, a := range snap.Aggregates {
		aggs.rows = append(aggs.rows, []any{a.Country, a.Capacity, a.Plants})
	}

	merged := sheet{
		name:   SheetMerged,
		header: []any{"Country", "Country code", "Daily capacity (m3/day)", "Operational plants"},
		widths: []float64{36, 14, 24, 20},
	}
	for _, r := range snap.Rows {
		row := []any{r.Country, r.CountryCode, nil, nil}
		if r.Capacity != nil {
			row[2] = *r.Capacity
		}
		if r.Plants != nil {
			row[3] = *r.Plants
		}
		merged.rows = append(merged.rows, row)
	}

	rejected := sheet{
		name:   SheetRejected,
		header: []any{"Row", "Country", "Territory", "City", "Name", "Capacity", "Reason"},
		widths: []float64{8, 24, 24, 20, 32, 20, 48},
	}
	for _, r := range snap.Rejected {
		rejected.rows = append(rejected.rows, []any{
			r.Row, r.Record.Country, r.Record.Territory, r.Record.City, r.Record.Name, r.Record.Capacity, r.Reason,
		})
	}

	return []sheet{aggs, merged, rejected}
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, w := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, col, col, w); err != nil {
			return err
		}
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}

	return f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
