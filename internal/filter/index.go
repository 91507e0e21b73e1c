package filter

import (
	"github.com/vinodismyname/hidash/internal/dataset"
)

// IndexResult holds every stage of the cascade over the index table. The
// intermediate stages feed the option lists of the next control.
type IndexResult struct {
	Mode     Mode
	Source   dataset.Table
	ByPeriod dataset.Table
	ByRegion dataset.Table
	ByCity   dataset.Table
	// Result is ByCity, or the bucket rows when any bucket is selected.
	Result dataset.Table
	// BucketCities lists the distinct cities of the bucket rows in first-seen
	// order. Nil when no bucket is selected.
	BucketCities []string
}

// ApplyIndex runs the cascade over the index table.
func ApplyIndex(idx dataset.Table, sel Selection, mode Mode) (*IndexResult, error) {
	buckets, err := resolveBuckets(sel.Buckets)
	if err != nil {
		return nil, err
	}
	r := &IndexResult{Mode: mode, Source: idx}
	if r.ByPeriod, err = In(idx, dataset.ColPeriod, sel.Periods); err != nil {
		return nil, err
	}
	if r.ByRegion, err = In(r.ByPeriod, dataset.ColRegion, sel.Regions); err != nil {
		return nil, err
	}
	if r.ByCity, err = In(r.ByRegion, dataset.ColCity, sel.Cities); err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		r.Result = r.ByCity
		return r, nil
	}

	base := r.ByRegion
	if mode == Intersect {
		base = r.ByCity
	}
	if r.Result, err = InBuckets(base, buckets); err != nil {
		return nil, err
	}
	r.BucketCities = firstSeen(r.Result)
	if r.BucketCities == nil {
		r.BucketCities = []string{}
	}
	return r, nil
}

// CityScope is the city restriction the column-group and OKR sections use:
// the selected cities when any, else the bucket cities when buckets are
// selected, else none. Under Intersect the bucket cities are already a subset
// of the selected cities and take precedence.
func (r *IndexResult) CityScope(sel Selection) Scope {
	hasBuckets := r.BucketCities != nil
	if r.Mode == Intersect && hasBuckets {
		return OnlyCities(r.BucketCities)
	}
	if len(sel.Cities) > 0 {
		return OnlyCities(sel.Cities)
	}
	if hasBuckets {
		return OnlyCities(r.BucketCities)
	}
	return AllCities()
}

// Options returns the cascaded option lists for the controls.
func (r *IndexResult) Options() (Options, error) {
	var (
		o   Options
		err error
	)
	if o.Periods, err = r.Source.Distinct(dataset.ColPeriod); err != nil {
		return Options{}, err
	}
	if o.Regions, err = r.ByPeriod.Distinct(dataset.ColRegion); err != nil {
		return Options{}, err
	}
	if o.Cities, err = r.ByRegion.Distinct(dataset.ColCity); err != nil {
		return Options{}, err
	}
	o.Buckets = BucketLabels()
	return o, nil
}

// Options are the values each control offers given the selections made upstream of it.
type Options struct {
	Periods []string `json:"yearweek"`
	Regions []string `json:"region"`
	Cities  []string `json:"city"`
	Buckets []string `json:"range"`
}

func firstSeen(t dataset.Table) []string {
	cities, err := t.Column(dataset.ColCity)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(cities))
	var out []string
	for _, c := range cities {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
