package pipeline

import (
	"math"
	"sort"

	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
)

// Kind distinguishes table sections from the chart.
type Kind string

const (
	KindTable Kind = "table"
	KindChart Kind = "chart"
)

// Section is one rendered block of the dashboard.
type Section struct {
	Key   string
	Title string
	Kind  Kind
	Table dataset.Table
	Chart *Chart
}

// Chart is the index trend: one line per city over the sorted periods.
type Chart struct {
	Periods []string `json:"periods"`
	Lines   []Line   `json:"lines"`
}

// Line is a city's series. Points keep row order.
type Line struct {
	City   string  `json:"city"`
	Points []Point `json:"points"`
}

// Point is one index observation.
type Point struct {
	Period string  `json:"yearweek"`
	Value  float64 `json:"value"`
}

// Result is the output of one pass. Sections holds everything produced before
// the pass stopped.
type Result struct {
	Selection    filter.Selection
	Options      filter.Options
	BucketCities []string
	Sections     []Section
}

// Section looks up a section by key.
func (r *Result) Section(key string) (Section, bool) {
	if r == nil {
		return Section{}, false
	}
	for _, s := range r.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// Chart returns the chart section, if produced.
func (r *Result) Chart() *Chart {
	s, ok := r.Section(KeyChart)
	if !ok {
		return nil
	}
	return s.Chart
}

// BuildChart groups the index rows by city in first-seen order. Rows with a
// missing index value contribute no point.
func BuildChart(t dataset.Table) (*Chart, error) {
	keys := t.Keys()
	vals, err := t.Floats(dataset.ColIndex)
	if err != nil {
		return nil, err
	}
	c := &Chart{}
	pos := make(map[string]int)
	periods := make(map[string]struct{})
	for i, k := range keys {
		periods[k.Period] = struct{}{}
		at, ok := pos[k.City]
		if !ok {
			at = len(c.Lines)
			pos[k.City] = at
			c.Lines = append(c.Lines, Line{City: k.City})
		}
		if math.IsNaN(vals[i]) {
			continue
		}
		c.Lines[at].Points = append(c.Lines[at].Points, Point{Period: k.Period, Value: vals[i]})
	}
	c.Periods = make([]string, 0, len(periods))
	for p := range periods {
		c.Periods = append(c.Periods, p)
	}
	sort.Strings(c.Periods)
	return c, nil
}

// PeriodIndex maps each period to its x position.
func (c *Chart) PeriodIndex() map[string]int {
	out := make(map[string]int, len(c.Periods))
	for i, p := range c.Periods {
		out[p] = i
	}
	return out
}

// Bounds returns the smallest and largest plotted value. ok is false when
// the chart has no points.
func (c *Chart) Bounds() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, l := range c.Lines {
		for _, p := range l.Points {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
			ok = true
		}
	}
	return lo, hi, ok
}
