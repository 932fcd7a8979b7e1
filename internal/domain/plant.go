package domain

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// MissingCountry replaces empty country cells.
const MissingCountry = "Baja"

var (
	// ErrUpstream marks failures fetching the source page (network, timeout, non-2xx).
	ErrUpstream = errors.New("upstream fetch failed")
	// ErrNotFound marks a missing table or column in the source page.
	ErrNotFound = errors.New("not found")
	// ErrParse marks malformed capacity text or boundary data.
	ErrParse = errors.New("parse error")
	// ErrGeometryMissing marks an absent boundary dataset.
	ErrGeometryMissing = errors.New("geometry file not found")
	// ErrNoRecords is returned when cleaning leaves no usable plant rows.
	ErrNoRecords = errors.New("no plant records")
)

// Table is an HTML table flattened to header names and cell text.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RawPlantRecord is one scraped plant row before capacity parsing.
type RawPlantRecord struct {
	Country   string `json:"country"`
	Territory string `json:"territory"`
	City      string `json:"city"`
	Name      string `json:"name"`
	Capacity  string `json:"capacity"`
}

// PlantRecord is a cleaned plant row with numeric daily capacity (m3/day).
type PlantRecord struct {
	Country   string `json:"country"`
	Territory string `json:"territory"`
	City      string `json:"city"`
	Name      string `json:"name"`
	Capacity  int64  `json:"capacity"`
}

// RejectedRow is a raw row dropped during cleaning.
type RejectedRow struct {
	Row    int            `json:"row"`
	Record RawPlantRecord `json:"record"`
	Reason string         `json:"reason"`
}

// CountryAggregate is the per-country total of cleaned plant rows.
type CountryAggregate struct {
	Country  string `json:"country"`
	Capacity int64  `json:"capacity"`
	Plants   int    `json:"plants"`
}

// CountryGeometry is one boundary row from the reference dataset.
type CountryGeometry struct {
	Country     string
	CountryCode string
	Geometry    orb.MultiPolygon
}

// MergedRow is a geometry row left-joined with its aggregate.
// Capacity and Plants are nil when no aggregate matched.
type MergedRow struct {
	Country     string
	CountryCode string
	Geometry    orb.MultiPolygon
	Capacity    *int64
	Plants      *int
}

// HasData reports whether the row matched an aggregate.
func (r MergedRow) HasData() bool {
	return r.Capacity != nil
}

// MergeReport describes rows on either side of the join that found no partner.
type MergeReport struct {
	// UnmatchedAggregates are countries from the scrape with no geometry row.
	UnmatchedAggregates []string
	// EmptyGeometries counts geometry rows left without statistics.
	EmptyGeometries int
}

// Snapshot is the result of one pipeline run.
type Snapshot struct {
	SourceURL   string
	Records     []PlantRecord
	Rejected    []RejectedRow
	Aggregates  []CountryAggregate
	Rows        []MergedRow
	Report      MergeReport
	GeneratedAt time.Time
}
