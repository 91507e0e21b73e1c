// Package groups describes the column groups sliced from the healthiness
// dataset and the order their sections appear in.
package groups

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vinodismyname/hidash/internal/dataset"
	"gopkg.in/yaml.v3"
)

// Source names the table a section is drawn from.
type Source string

const (
	// SourceRaw slices value columns from the healthiness dataset.
	SourceRaw Source = "raw"
	// SourceOKR shows the OKR table whole.
	SourceOKR Source = "okr"
)

// Reserved section keys produced ahead of the layout.
const (
	KeyIndex = "index"
	KeyChart = "chart"
)

// Entry is one section of the layout. Start and End are a half-open range
// over the value columns; Columns, when set, names the columns instead.
type Entry struct {
	Key     string   `yaml:"key" json:"key"`
	Title   string   `yaml:"title" json:"title"`
	Source  Source   `yaml:"source,omitempty" json:"source,omitempty"`
	Start   int      `yaml:"start,omitempty" json:"start,omitempty"`
	End     int      `yaml:"end,omitempty" json:"end,omitempty"`
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// Layout is the ordered list of sections following the index table and chart.
type Layout struct {
	Groups []Entry `yaml:"groups"`
}

// DefaultLayout mirrors the column layout of the weekly healthiness export.
// Value column 13 and everything from 74 on are not shown.
func DefaultLayout() Layout {
	return Layout{Groups: []Entry{
		{Key: "value_kpi", Title: "Raw Value KPI", Source: SourceRaw, Start: 0, End: 13},
		{Key: "alert_status", Title: "Alert Status KPI", Source: SourceRaw, Start: 14, End: 26},
		{Key: "okr", Title: "Related OKR Target Q1", Source: SourceOKR},
		{Key: "alert_target", Title: "Alert Target KPI", Source: SourceRaw, Start: 26, End: 38},
		{Key: "alert_result", Title: "Result Alert", Source: SourceRaw, Start: 38, End: 50},
		{Key: "score", Title: "Score", Source: SourceRaw, Start: 62, End: 74},
		{Key: "feature_importance", Title: "Feature Importance", Source: SourceRaw, Start: 50, End: 62},
	}}
}

// LoadLayout reads a YAML layout file and validates it.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("groups: read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a YAML layout. Entries without a source
// default to SourceRaw.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("groups: parse layout: %w", err)
	}
	for i := range l.Groups {
		if l.Groups[i].Source == "" {
			l.Groups[i].Source = SourceRaw
		}
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks keys, sources and ranges.
func (l Layout) Validate() error {
	if len(l.Groups) == 0 {
		return errors.New("groups: layout has no groups")
	}
	seen := make(map[string]struct{}, len(l.Groups))
	okr := 0
	for i, e := range l.Groups {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			return fmt.Errorf("groups: entry %d: key is required", i)
		}
		if key == KeyIndex || key == KeyChart {
			return fmt.Errorf("groups: entry %d: key %q is reserved", i, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("groups: duplicate key %q", key)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("groups: %s: title is required", key)
		}
		switch e.Source {
		case SourceOKR:
			okr++
			continue
		case SourceRaw:
		default:
			return fmt.Errorf("groups: %s: unknown source %q", key, e.Source)
		}
		if len(e.Columns) > 0 {
			for _, c := range e.Columns {
				if c == dataset.ColPeriod || c == dataset.ColCity || c == dataset.ColRegion {
					return fmt.Errorf("groups: %s: key column %q cannot be listed", key, c)
				}
			}
			continue
		}
		if e.Start < 0 || e.End < 0 {
			return fmt.Errorf("groups: %s: offsets must be non-negative", key)
		}
		if e.Start > e.End {
			return fmt.Errorf("groups: %s: start %d is after end %d", key, e.Start, e.End)
		}
	}
	if okr > 1 {
		return errors.New("groups: at most one okr section is allowed")
	}
	return nil
}

// Find returns the entry with the given key.
func (l Layout) Find(key string) (Entry, bool) {
	for _, e := range l.Groups {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Slice returns the key columns plus the entry's columns. Offsets past the end
// of the value columns are clamped, so short files yield short or empty slices.
func Slice(t dataset.Table, e Entry) (dataset.Table, error) {
	if len(e.Columns) > 0 {
		return t.Project(e.Key, e.Columns)
	}
	vals := t.ValueColumns()
	start, end := clamp(e.Start, len(vals)), clamp(e.End, len(vals))
	return t.Project(e.Key, vals[start:end])
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
