// Package domain models desalination plant data scraped from the Wikipedia
// "Desalination by country" article and the country boundary reference data
// it is joined against.
//
// # Data Source
//
// Plants come from the first table with class "wikitable sortable" on
// https://en.wikipedia.org/wiki/Desalination_by_country. The page lists one
// plant per row:
//
//	Country | Territory | City | Name | Completion | Coordinates | Capacity (per day)
//
// Country cells frequently span several rows (rowspan); the extractor expands
// them so each plant carries its country. Cells that are genuinely empty stay
// empty and are filled with [MissingCountry] during cleaning.
//
// # Capacity Format
//
// Capacity cells read "<number> <unit>" with comma thousands separators, e.g.
//
//	"12,345 m3/d"   → 12345
//	"40,000m3/"     → 40000   (unit glued to the number, at most three chars)
//	"1,000 m3/d[4]" → 1000    (anything after the first space is ignored)
//
// Cells that do not yield an integer this way are rejected rather than
// coerced to zero. See [ParseCapacity].
//
// # Boundary Data
//
// Country polygons come from the Natural Earth 1:110m admin-0 countries
// dataset. ADMIN is the canonical country name and ADM0_A3 the ISO-like code.
//
// # Join Semantics
//
// Aggregates are left-joined onto geometries by exact country name. Names on
// the Wikipedia page that differ from ADMIN ("USA" vs "United States of
// America") produce geometry rows without statistics and aggregates without a
// polygon. Both sides are reported in [MergeReport] instead of being dropped
// silently.
package domain
