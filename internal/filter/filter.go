// Package filter implements the cascading period, region, city and bucket
// narrowing shared by every dashboard section.
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/vinodismyname/hidash/internal/dataset"
)

// Mode selects which rows bucket filtering is evaluated against.
type Mode string

const (
	// Override evaluates buckets against the region-filtered rows, so a bucket
	// selection replaces the city selection.
	Override Mode = "override"
	// Intersect evaluates buckets against the city-filtered rows.
	Intersect Mode = "intersect"
)

// ParseMode maps a configuration value to a Mode. Empty means Override.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Override:
		return Override, nil
	case Intersect:
		return Intersect, nil
	}
	return "", fmt.Errorf("filter: unknown bucket mode %q", s)
}

// Selection is the set of values chosen for each filter control. An empty
// slice places no restriction on that dimension.
type Selection struct {
	Periods []string `json:"yearweek,omitempty" validate:"omitempty,max=520,dive,required"`
	Regions []string `json:"region,omitempty" validate:"omitempty,dive,required"`
	Cities  []string `json:"city,omitempty" validate:"omitempty,dive,required"`
	Buckets []string `json:"range,omitempty" validate:"omitempty,dive,bucket"`
}

// Clean returns a copy with values trimmed and blanks dropped.
func (s Selection) Clean() Selection {
	return Selection{
		Periods: clean(s.Periods),
		Regions: clean(s.Regions),
		Cities:  clean(s.Cities),
		Buckets: clean(s.Buckets),
	}
}

// IsEmpty reports whether no dimension is restricted.
func (s Selection) IsEmpty() bool {
	return len(s.Periods) == 0 && len(s.Regions) == 0 && len(s.Cities) == 0 && len(s.Buckets) == 0
}

// Hash is a short stable digest of the selection, used to bind pagination
// cursors to the filter state they were issued for.
func (s Selection) Hash() string {
	h := sha256.New()
	for _, part := range [][]string{s.Periods, s.Regions, s.Cities, s.Buckets} {
		h.Write([]byte(strings.Join(part, "\x1f")))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func clean(vals []string) []string {
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Scope restricts the city column. With Restrict unset every city passes;
// with Restrict set only Cities pass, and an empty list passes nothing.
type Scope struct {
	Restrict bool
	Cities   []string
}

// AllCities is the unrestricted scope.
func AllCities() Scope { return Scope{} }

// OnlyCities restricts to the given cities.
func OnlyCities(cities []string) Scope { return Scope{Restrict: true, Cities: cities} }

// In keeps the rows whose column value is one of values. No values means no restriction.
func In(t dataset.Table, column string, values []string) (dataset.Table, error) {
	if len(values) == 0 {
		return t, nil
	}
	return keep(t, column, values)
}

func keep(t dataset.Table, column string, values []string) (dataset.Table, error) {
	if !t.HasColumn(column) {
		return dataset.Table{}, fmt.Errorf("%w %q in %s", dataset.ErrMissingColumn, column, t.Name)
	}
	if t.Nrow() == 0 {
		return t, nil
	}
	if len(values) == 0 {
		return t.Empty(), nil
	}
	df := t.Frame.Filter(dataframe.F{
		Colname:    column,
		Comparator: series.In,
		Comparando: values,
	})
	if df.Err != nil {
		return dataset.Table{}, fmt.Errorf("filter: %s on %s: %w", column, t.Name, df.Err)
	}
	return t.WithFrame(df), nil
}

// Narrow applies period, then region, then the city scope to any keyed table.
func Narrow(t dataset.Table, sel Selection, scope Scope) (dataset.Table, error) {
	out, err := In(t, dataset.ColPeriod, sel.Periods)
	if err != nil {
		return dataset.Table{}, err
	}
	if out, err = In(out, dataset.ColRegion, sel.Regions); err != nil {
		return dataset.Table{}, err
	}
	if !scope.Restrict {
		return out, nil
	}
	return keep(out, dataset.ColCity, scope.Cities)
}

// InBuckets returns, in bucket order, the rows whose index value falls in
// each bucket. Rows matching several selected buckets appear once per bucket.
func InBuckets(t dataset.Table, buckets []Bucket) (dataset.Table, error) {
	if !t.HasColumn(dataset.ColIndex) {
		return dataset.Table{}, fmt.Errorf("%w %q in %s", dataset.ErrMissingColumn, dataset.ColIndex, t.Name)
	}
	if t.Nrow() == 0 || len(buckets) == 0 {
		return t.Empty(), nil
	}
	var out dataframe.DataFrame
	for i, b := range buckets {
		part := t.Frame.Filter(dataframe.F{
			Colname:    dataset.ColIndex,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				return !el.IsNA() && b.Contains(el.Float())
			},
		})
		if part.Err != nil {
			return dataset.Table{}, fmt.Errorf("filter: bucket %q: %w", b.Label, part.Err)
		}
		if i == 0 {
			out = part
			continue
		}
		if part.Nrow() == 0 {
			continue
		}
		if out.Nrow() == 0 {
			out = part
			continue
		}
		out = out.RBind(part)
		if out.Err != nil {
			return dataset.Table{}, fmt.Errorf("filter: concat bucket %q: %w", b.Label, out.Err)
		}
	}
	return t.WithFrame(out), nil
}
