package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// unitSuffixLen is the length of a unit glued onto a capacity number ("m3/").
const unitSuffixLen = 3

// column header prefixes recognised in the source table.
const (
	headerCompletion  = "completion"
	headerCoordinates = "coordinates"
	headerCapacity    = "capacity"
)

// PlantRecords maps the table's columns onto raw plant records. Completion
// and coordinate columns are dropped, the capacity column is located by name,
// and the four remaining columns are read in page order as country,
// territory, city and name.
func PlantRecords(t Table) ([]RawPlantRecord, error) {
	capIdx := -1
	var keep []int
	for i, h := range t.Columns {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.HasPrefix(name, headerCompletion), strings.HasPrefix(name, headerCoordinates):
			continue
		case strings.HasPrefix(name, headerCapacity):
			if capIdx < 0 {
				capIdx = i
			}
			continue
		}
		keep = append(keep, i)
	}
	if capIdx < 0 {
		return nil, fmt.Errorf("capacity column in %q: %w", t.Columns, ErrNotFound)
	}
	if len(keep) != 4 {
		return nil, fmt.Errorf("expected 4 descriptive columns, got %d in %q: %w", len(keep), t.Columns, ErrNotFound)
	}

	records := make([]RawPlantRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		records = append(records, RawPlantRecord{
			Country:   cell(row, keep[0]),
			Territory: cell(row, keep[1]),
			City:      cell(row, keep[2]),
			Name:      cell(row, keep[3]),
			Capacity:  cell(row, capIdx),
		})
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseCapacity converts capacity text such as "12,345 m3/d" to 12345.
// The first whitespace-separated token is used; a three character unit glued
// onto the number is stripped along with comma separators.
func ParseCapacity(s string) (int64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty capacity: %w", ErrParse)
	}
	token := []rune(fields[0])

	// Units are usually separated by a space; when glued on ("40,000m3/")
	// the last three characters are the unit.
	if !isCapacityNumber(token) && len(token) > unitSuffixLen {
		token = token[:len(token)-unitSuffixLen]
	}
	if !isCapacityNumber(token) {
		return 0, fmt.Errorf("capacity %q: not a number: %w", s, ErrParse)
	}

	digits := strings.ReplaceAll(string(token), ",", "")
	if digits == "" {
		return 0, fmt.Errorf("capacity %q: no digits: %w", s, ErrParse)
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("capacity %q: %w", s, ErrParse)
	}
	return v, nil
}

func isCapacityNumber(token []rune) bool {
	for _, r := range token {
		if r != ',' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CleanRecords parses capacities and fills missing countries. Rows whose
// capacity cannot be parsed are returned as rejected instead of being kept
// with a zero value. Row numbers in rejections are 1-based data rows.
func CleanRecords(raw []RawPlantRecord) ([]PlantRecord, []RejectedRow) {
	clean := make([]PlantRecord, 0, len(raw))
	var rejected []RejectedRow
	for i, r := range raw {
		capacity, err := ParseCapacity(r.Capacity)
		if err != nil {
			rejected = append(rejected, RejectedRow{Row: i + 1, Record: r, Reason: err.Error()})
			continue
		}
		country := r.Country
		if country == "" {
			country = MissingCountry
		}
		clean = append(clean, PlantRecord{
			Country:   country,
			Territory: r.Territory,
			City:      r.City,
			Name:      r.Name,
			Capacity:  capacity,
		})
	}
	return clean, rejected
}
