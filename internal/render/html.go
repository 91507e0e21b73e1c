package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/pipeline"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var page = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"has": has,
}).ParseFS(templateFS, "templates/dashboard.html"))

// Upload identifies a stored upload on the page.
type Upload struct {
	ID   string
	Name string
}

// PageSection is a section ready for the template.
type PageSection struct {
	Key   string
	Title string
	Chart template.HTML
	Table *TableView
}

// PageData feeds the dashboard template.
type PageData struct {
	Title       string
	Version     string
	Healthiness Upload
	OKR         Upload
	Selection   filter.Selection
	Options     filter.Options
	Loaded      bool // index table parsed; filter controls render only then
	Sections    []PageSection
	Query       template.URL
	MaxUploadMB int64
}

// PageSections converts a result for the template, drawing the chart inline.
func PageSections(res *pipeline.Result, limit int) ([]PageSection, error) {
	if res == nil {
		return nil, nil
	}
	out := make([]PageSection, 0, len(res.Sections))
	for _, s := range res.Sections {
		ps := PageSection{Key: s.Key, Title: s.Title}
		if s.Kind == pipeline.KindChart {
			var buf bytes.Buffer
			if err := ChartSVG(&buf, s.Chart); err != nil {
				return out, err
			}
			ps.Chart = template.HTML(buf.String())
		} else {
			ps.Table = Window(s.Table, 0, limit)
		}
		out = append(out, ps)
	}
	return out, nil
}

// Page executes the dashboard template.
func Page(w io.Writer, d PageData) error {
	if d.Title == "" {
		d.Title = "City Healthiness Index"
	}
	if err := page.Execute(w, d); err != nil {
		return fmt.Errorf("render: page: %w", err)
	}
	return nil
}

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
