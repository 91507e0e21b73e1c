// Package render turns a pipeline result into HTML, SVG, XLSX and JSON views.
package render

import (
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/pipeline"
)

// TableView is a window of a section's rows.
type TableView struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Offset    int        `json:"offset"`
	Truncated bool       `json:"truncated"`
}

// SectionView is the JSON form of a section.
type SectionView struct {
	Key   string          `json:"key"`
	Title string          `json:"title"`
	Kind  pipeline.Kind   `json:"kind"`
	Table *TableView      `json:"table,omitempty"`
	Chart *pipeline.Chart `json:"chart,omitempty"`
}

// Document is the JSON form of a whole pass.
type Document struct {
	Selection    filter.Selection `json:"selection"`
	Options      filter.Options   `json:"options"`
	BucketCities []string         `json:"bucket_cities,omitempty"`
	Sections     []SectionView    `json:"sections"`
}

// NewDocument converts a result, keeping at most limit rows per table.
// A non-positive limit keeps every row.
func NewDocument(res *pipeline.Result, limit int) Document {
	doc := Document{Sections: []SectionView{}}
	if res == nil {
		return doc
	}
	doc.Selection = res.Selection
	doc.Options = res.Options
	doc.BucketCities = res.BucketCities
	for _, s := range res.Sections {
		doc.Sections = append(doc.Sections, NewSectionView(s, 0, limit))
	}
	return doc
}

// NewSectionView converts one section, windowing table rows to
// [offset, offset+limit).
func NewSectionView(s pipeline.Section, offset, limit int) SectionView {
	v := SectionView{Key: s.Key, Title: s.Title, Kind: s.Kind}
	if s.Kind == pipeline.KindChart {
		v.Chart = s.Chart
		return v
	}
	v.Table = Window(s.Table, offset, limit)
	return v
}

// Window returns the rows of t in [offset, offset+limit).
func Window(t dataset.Table, offset, limit int) *TableView {
	rows := t.Rows()
	total := len(rows)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := rows[offset:end]
	if out == nil {
		out = [][]string{}
	}
	return &TableView{
		Columns:   t.Names(),
		Rows:      out,
		TotalRows: total,
		Offset:    offset,
		Truncated: end < total,
	}
}
