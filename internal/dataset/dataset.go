// Package dataset ingests uploaded healthiness-index and OKR tables into
// gota DataFrames keyed by (yearweek, city, region).
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column names the dashboard depends on.
const (
	ColPeriod   = "yearweek"
	ColCity     = "city"
	ColRegion   = "region"
	ColLocation = "location"
	ColIndex    = "Healthiness_Index_(%)"
)

// KeyColumns is the row key every loaded table leads with, in this order.
var KeyColumns = []string{ColPeriod, ColCity, ColRegion}

var (
	// ErrEmptyUpload indicates a file with no header row.
	ErrEmptyUpload = errors.New("dataset: empty upload")
	// ErrMissingColumn indicates a required or requested column is absent.
	ErrMissingColumn = errors.New("dataset: missing column")
	// ErrUnsupportedFormat indicates an extension no reader is registered for.
	ErrUnsupportedFormat = errors.New("dataset: unsupported format")
	// ErrMalformed indicates a file the delimited or workbook reader rejected.
	ErrMalformed = errors.New("dataset: malformed file")
	// ErrRaggedRows indicates a row with more fields than the header.
	ErrRaggedRows = errors.New("dataset: ragged rows")
	// ErrBadIndexValue indicates a non-numeric, non-blank index cell.
	ErrBadIndexValue = errors.New("dataset: non-numeric index value")
)

// Key identifies one logical row.
type Key struct {
	Period string `json:"yearweek"`
	City   string `json:"city"`
	Region string `json:"region"`
}

// Table is a DataFrame whose first columns are KeyColumns followed by the
// value columns in source order.
type Table struct {
	Name  string
	Frame dataframe.DataFrame
}

// Nrow returns the number of data rows.
func (t Table) Nrow() int { return t.Frame.Nrow() }

// Names returns every column name, keys included.
func (t Table) Names() []string { return t.Frame.Names() }

// ValueColumns returns the non-key columns. Positional offsets used by column
// groups count over this list.
func (t Table) ValueColumns() []string {
	names := t.Frame.Names()
	if len(names) < len(KeyColumns) {
		return nil
	}
	return names[len(KeyColumns):]
}

// HasColumn reports whether name is a column of the table.
func (t Table) HasColumn(name string) bool {
	for _, n := range t.Frame.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns the textual cells of a column.
func (t Table) Column(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, name, t.Name)
	}
	return cells(t.Frame.Col(name)), nil
}

// Floats returns a column as float64 values; non-numeric cells are NaN.
func (t Table) Floats(name string) ([]float64, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, name, t.Name)
	}
	return t.Frame.Col(name).Float(), nil
}

// Rows returns the data rows as text, without the header.
func (t Table) Rows() [][]string {
	n := t.Frame.Nrow()
	if n == 0 {
		return nil
	}
	names := t.Frame.Names()
	byCol := make([][]string, len(names))
	for i, name := range names {
		byCol[i] = cells(t.Frame.Col(name))
	}
	rows := make([][]string, n)
	for r := 0; r < n; r++ {
		row := make([]string, len(names))
		for c := range names {
			row[c] = byCol[c][r]
		}
		rows[r] = row
	}
	return rows
}

// cells renders a series as text. Floats use the shortest exact form and
// missing values render empty.
func cells(s series.Series) []string {
	if s.Type() != series.Float {
		return s.Records()
	}
	vals := s.Float()
	out := make([]string, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// Keys returns the row keys in row order.
func (t Table) Keys() []Key {
	n := t.Frame.Nrow()
	if n == 0 {
		return nil
	}
	periods := t.Frame.Col(ColPeriod).Records()
	cities := t.Frame.Col(ColCity).Records()
	regions := t.Frame.Col(ColRegion).Records()
	keys := make([]Key, n)
	for i := 0; i < n; i++ {
		keys[i] = Key{Period: periods[i], City: cities[i], Region: regions[i]}
	}
	return keys
}

// Distinct returns the sorted unique values of a column.
func (t Table) Distinct(name string) ([]string, error) {
	vals, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Project returns the key columns plus the named value columns, in the order given.
func (t Table) Project(name string, columns []string) (Table, error) {
	sel := make([]string, 0, len(KeyColumns)+len(columns))
	sel = append(sel, KeyColumns...)
	for _, c := range columns {
		if !t.HasColumn(c) {
			return Table{}, fmt.Errorf("%w %q in %s", ErrMissingColumn, c, t.Name)
		}
		sel = append(sel, c)
	}
	df := t.Frame.Select(sel)
	if df.Err != nil {
		return Table{}, fmt.Errorf("dataset: project %s: %w", t.Name, df.Err)
	}
	return Table{Name: name, Frame: df}, nil
}

// WithFrame returns a copy of t carrying df.
func (t Table) WithFrame(df dataframe.DataFrame) Table {
	return Table{Name: t.Name, Frame: df}
}

// Empty returns a zero-row table with the same columns and types as t.
func (t Table) Empty() Table {
	cols := make([]series.Series, 0, t.Frame.Ncol())
	for _, name := range t.Frame.Names() {
		s := t.Frame.Col(name)
		cols = append(cols, series.New([]string{}, s.Type(), name))
	}
	return Table{Name: t.Name, Frame: dataframe.New(cols...)}
}
