package wikipedia

import (
	"testing"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClass = "wikitable sortable"

const plantsPage = `<!DOCTYPE html>
<html><body>
<table class="wikitable"><tr><th>Decoy</th></tr><tr><td>ignored</td></tr></table>
<table class="wikitable sortable jquery-tablesorter">
<thead>
<tr><th>Country</th><th>Territory</th><th>City</th><th>Name</th><th>Completion</th><th>Coordinates</th><th>Capacity (per day)</th></tr>
</thead>
<tbody>
<tr><td rowspan="2">USA</td><td></td><td>CityA</td><td>PlantA<sup class="reference">[1]</sup></td><td>2001</td><td><span style="display:none">hidden</span>1°N</td><td>1,000 m3/d</td></tr>
<tr><td></td><td>CityB</td><td>PlantB</td><td>2003</td><td></td><td>2,000 m3/d</td></tr>
<tr><td></td><td>Baja California</td><td>Rosarito</td><td>Rosarito  Plant</td><td>2020</td><td></td><td>5,000 m3/d</td></tr>
</tbody>
</table>
<table class="wikitable sortable"><tr><th>Other</th></tr></table>
</body></html>`

func TestClassSelector(t *testing.T) {
	assert.Equal(t, "table.wikitable.sortable", ClassSelector("wikitable sortable"))
	assert.Equal(t, "table.wikitable", ClassSelector("  wikitable "))
}

func TestExtractTable(t *testing.T) {
	table, err := ExtractTable([]byte(plantsPage), testClass)
	require.NoError(t, err)

	want := domain.Table{
		Columns: []string{"Country", "Territory", "City", "Name", "Completion", "Coordinates", "Capacity (per day)"},
		Rows: [][]string{
			{"USA", "", "CityA", "PlantA", "2001", "1°N", "1,000 m3/d"},
			{"USA", "", "CityB", "PlantB", "2003", "", "2,000 m3/d"},
			{"", "Baja California", "Rosarito", "Rosarito Plant", "2020", "", "5,000 m3/d"},
		},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("ExtractTable mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractTable_Colspan(t *testing.T) {
	page := `<table class="wikitable sortable">
<tr><th>A</th><th>B</th><th>C</th></tr>
<tr><td colspan="2">wide</td><td>c1</td></tr>
<tr><td>a2</td><td rowspan="2" colspan="2">block</td></tr>
<tr><td>a3</td></tr>
</table>`

	table, err := ExtractTable([]byte(page), testClass)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"wide", "wide", "c1"},
		{"a2", "block", "block"},
		{"a3", "block", "block"},
	}, table.Rows)
}

func TestExtractTable_OversizedSpansAreClamped(t *testing.T) {
	page := `<table class="wikitable sortable">
<tr><th>A</th><th>B</th></tr>
<tr><td colspan="100000000">wide</td></tr>
<tr><td rowspan="999999999">tall</td><td>b1</td></tr>
<tr><td>b2</td></tr>
</table>`

	table, err := ExtractTable([]byte(page), testClass)
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Len(t, table.Rows[0], maxColspan)
	assert.Equal(t, []string{"tall", "b1"}, table.Rows[1])
	assert.Equal(t, []string{"tall", "b2"}, table.Rows[2])
}

func TestExtractTable_TrailingRowspan(t *testing.T) {
	page := `<table class="wikitable sortable">
<tr><th>A</th><th>B</th><th>C</th></tr>
<tr><td>a1</td><td>b1</td><td rowspan="3">tall</td></tr>
<tr><td>a2</td><td>b2</td></tr>
<tr><td>a3</td></tr>
<tr><td>a4</td><td>b4</td><td>c4</td></tr>
</table>`

	table, err := ExtractTable([]byte(page), testClass)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"a1", "b1", "tall"},
		{"a2", "b2", "tall"},
		{"a3", "", "tall"},
		{"a4", "b4", "c4"},
	}, table.Rows)
}

func TestExtractTable_SkipsEmptyAndHeaderRows(t *testing.T) {
	page := `<table class="wikitable sortable">
<tr><th>A</th><th>B</th></tr>
<tr><th>A</th><th>B</th></tr>
<tr><td> </td><td></td></tr>
<tr><td>x</td><td>y</td></tr>
</table>`

	table, err := ExtractTable([]byte(page), testClass)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}}, table.Rows)
}

func TestExtractTable_IgnoresNestedTables(t *testing.T) {
	page := `<table class="wikitable sortable">
<tr><th>A</th><th>B</th></tr>
<tr><td>x</td><td><table><tr><td>inner</td></tr></table></td></tr>
</table>`

	table, err := ExtractTable([]byte(page), testClass)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "x", table.Rows[0][0])
}

func TestExtractTable_NotFound(t *testing.T) {
	_, err := ExtractTable([]byte(`<html><body><table class="wikitable"></table></body></html>`), testClass)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExtractTable_NoHeader(t *testing.T) {
	_, err := ExtractTable([]byte(`<table class="wikitable sortable"><tr><td>x</td></tr></table>`), testClass)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTableExtractor(t *testing.T) {
	table, err := TableExtractor{Class: testClass}.Extract([]byte(plantsPage))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 3)
}
