package domain

// Merge left-joins aggregates onto geometries by exact country name.
// Every geometry row is kept, in input order; rows without a matching
// aggregate have nil Capacity and Plants.
func Merge(geoms []CountryGeometry, aggs []CountryAggregate) ([]MergedRow, MergeReport) {
	byCountry := make(map[string]CountryAggregate, len(aggs))
	for _, a := range aggs {
		byCountry[a.Country] = a
	}

	matched := make(map[string]bool, len(aggs))
	rows := make([]MergedRow, len(geoms))
	var report MergeReport
	for i, g := range geoms {
		rows[i] = MergedRow{
			Country:     g.Country,
			CountryCode: g.CountryCode,
			Geometry:    g.Geometry,
		}
		a, ok := byCountry[g.Country]
		if !ok {
			report.EmptyGeometries++
			continue
		}
		capacity, plants := a.Capacity, a.Plants
		rows[i].Capacity = &capacity
		rows[i].Plants = &plants
		matched[a.Country] = true
	}

	for _, a := range aggs {
		if !matched[a.Country] {
			report.UnmatchedAggregates = append(report.UnmatchedAggregates, a.Country)
		}
	}
	return rows, report
}
