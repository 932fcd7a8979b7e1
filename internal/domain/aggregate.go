package domain

import (
	"sort"
)

// Aggregate groups plant records by country, summing capacity and counting
// plants. The result has one row per distinct country, sorted by name.
func Aggregate(records []PlantRecord) []CountryAggregate {
	byCountry := make(map[string]*CountryAggregate)
	for _, r := range records {
		agg, ok := byCountry[r.Country]
		if !ok {
			agg = &CountryAggregate{Country: r.Country}
			byCountry[r.Country] = agg
		}
		agg.Capacity += r.Capacity
		agg.Plants++
	}

	out := make([]CountryAggregate, 0, len(byCountry))
	for _, agg := range byCountry {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// CombineAggregates merges partial aggregates computed over disjoint record
// sets, e.g. two halves of one table.
func CombineAggregates(parts ...[]CountryAggregate) []CountryAggregate {
	byCountry := make(map[string]*CountryAggregate)
	for _, part := range parts {
		for _, a := range part {
			agg, ok := byCountry[a.Country]
			if !ok {
				agg = &CountryAggregate{Country: a.Country}
				byCountry[a.Country] = agg
			}
			agg.Capacity += a.Capacity
			agg.Plants += a.Plants
		}
	}

	out := make([]CountryAggregate, 0, len(byCountry))
	for _, agg := range byCountry {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// CapacityRange returns the minimum and maximum aggregate capacity.
// ok is false when there are no aggregates.
func CapacityRange(aggs []CountryAggregate) (low, high int64, ok bool) {
	if len(aggs) == 0 {
		return 0, 0, false
	}
	low, high = aggs[0].Capacity, aggs[0].Capacity
	for _, a := range aggs[1:] {
		low = min(low, a.Capacity)
		high = max(high, a.Capacity)
	}
	return low, high, true
}
