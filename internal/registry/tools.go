package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/render"
	"github.com/vinodismyname/hidash/internal/runtime"
	"github.com/vinodismyname/hidash/internal/security"
	"github.com/vinodismyname/hidash/pkg/dasherr"
	"github.com/vinodismyname/hidash/pkg/pagination"
	"github.com/vinodismyname/hidash/pkg/validation"
)

// --- Input / Output Schemas (typed for discovery) ---

// SourcePaths names the two files a pass reads.
type SourcePaths struct {
	HealthinessPath string `json:"healthiness_path" validate:"required,dataset_ext" jsonschema:"required" jsonschema_description:"Path to the healthiness index file (.csv, .tsv, .txt, .xlsx, .xlsm) inside an allowed directory"`
	OKRPath         string `json:"okr_path,omitempty" validate:"omitempty,dataset_ext" jsonschema_description:"Path to the OKR target file; the pass stops before the OKR section without it"`
}

// ListFilterOptionsInput defines parameters for list_filter_options.
type ListFilterOptionsInput struct {
	SourcePaths
	filter.Selection
}

// ListFilterOptionsOutput is the cascaded option lists for a partial selection.
type ListFilterOptionsOutput struct {
	Selection filter.Selection `json:"selection"`
	Options   filter.Options   `json:"options"`
}

// FilterDashboardInput defines parameters for filter_dashboard.
type FilterDashboardInput struct {
	SourcePaths
	filter.Selection
	Section  string `json:"section,omitempty" jsonschema_description:"Return only this section key; implied by cursor"`
	Cursor   string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous next_cursor"`
	PageSize int    `json:"page_size,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Rows per table section (defaults to the preview limit)"`
}

// SectionPage is a section window plus the cursor for its next rows.
type SectionPage struct {
	render.SectionView
	NextCursor string `json:"next_cursor,omitempty"`
}

// FilterDashboardOutput documents the filter_dashboard response.
type FilterDashboardOutput struct {
	Selection    filter.Selection `json:"selection"`
	Options      filter.Options   `json:"options"`
	BucketCities []string         `json:"bucket_cities,omitempty"`
	Sections     []SectionPage    `json:"sections"`
	Error        *dasherr.Body    `json:"error,omitempty"`
}

// Dashboard serves the path-based dashboard tools.
type Dashboard struct {
	Pipeline *pipeline.Pipeline
	Security *security.Manager
	Limits   runtime.Limits
}

// RegisterDashboardTools defines list_filter_options and filter_dashboard.
func RegisterDashboardTools(s *server.MCPServer, reg *Registry, d *Dashboard) {
	options := mcp.NewTool(
		"list_filter_options",
		mcp.WithDescription("Return the cascading filter options for a healthiness index file: yearweek values, then regions available for the selected yearweeks, then cities available for the selected regions, plus the fixed healthiness index ranges. Pass the current partial selection to see what the next control offers. Errors include PERMISSION_DENIED, UNSUPPORTED_FORMAT, MISSING_COLUMN and PARSE_FAILED."),
		mcp.WithInputSchema[ListFilterOptionsInput](),
		mcp.WithOutputSchema[ListFilterOptionsOutput](),
	)
	reg.Add(s, options, mcp.NewTypedToolHandler(d.ListFilterOptions))

	dash := mcp.NewTool(
		"filter_dashboard",
		mcp.WithDescription("Run one dashboard pass: filter the healthiness index by yearweek, region, city and index range, then return the index table, the per-city trend, and every column group (value KPIs, alert status, OKR targets, alert target, alert result, score, feature importance) restricted to the same rows. A range selection replaces the city selection for the index table; column groups use the selected cities, or the cities found in the range when none are selected. Tables are capped at page_size rows; follow next_cursor with the same selection to read more. On failure the sections produced before the error are returned together with the coded error."),
		mcp.WithInputSchema[FilterDashboardInput](),
		mcp.WithOutputSchema[FilterDashboardOutput](),
	)
	reg.Add(s, dash, mcp.NewTypedToolHandler(d.FilterDashboard))
}

// ListFilterOptions implements list_filter_options.
func (d *Dashboard) ListFilterOptions(ctx context.Context, req mcp.CallToolRequest, in ListFilterOptionsInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return dasherr.FromText(msg), nil
	}
	inputs, _, cerr := d.read(in.SourcePaths)
	if cerr != nil {
		return cerr.ToolResult(), nil
	}
	sel := in.Selection.Clean()
	opts, err := d.Pipeline.Options(ctx, inputs, sel)
	if err != nil {
		return pipeline.Classify(err).ToolResult(), nil
	}
	out := ListFilterOptionsOutput{Selection: sel, Options: opts}
	summary := fmt.Sprintf("yearweek=%d region=%d city=%d range=%d", len(opts.Periods), len(opts.Regions), len(opts.Cities), len(opts.Buckets))
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res, nil
}

// FilterDashboard implements filter_dashboard.
func (d *Dashboard) FilterDashboard(ctx context.Context, req mcp.CallToolRequest, in FilterDashboardInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return dasherr.FromText(msg), nil
	}
	inputs, bind, cerr := d.read(in.SourcePaths)
	if cerr != nil {
		return cerr.ToolResult(), nil
	}
	sel := in.Selection.Clean()

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = d.Limits.PreviewRowLimit
	}
	base := pagination.Cursor{Src: bind[0], Okr: bind[1], K: strings.TrimSpace(in.Section), Sh: sel.Hash(), Ps: pageSize}
	if in.Cursor != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return dasherr.Wrap(dasherr.CursorInvalid, err).ToolResult(), nil
		}
		if base.K == "" {
			base.K = c.K
		}
		if err := c.Bind(base.Src, base.Okr, base.K, base.Sh); err != nil {
			return dasherr.Wrap(dasherr.CursorInvalid, err).ToolResult(), nil
		}
		base.Off, base.Ps = c.Off, c.Ps
	}

	result, runErr := d.Pipeline.Run(ctx, inputs, sel)
	out := FilterDashboardOutput{
		Selection:    result.Selection,
		Options:      result.Options,
		BucketCities: result.BucketCities,
		Sections:     []SectionPage{},
	}

	for _, s := range result.Sections {
		if base.K != "" && s.Key != base.K {
			continue
		}
		c := base
		c.K = s.Key
		page, err := pageOf(s, c)
		if err != nil {
			return dasherr.Wrap(dasherr.RenderFailed, err).ToolResult(), nil
		}
		out.Sections = append(out.Sections, page)
	}

	if runErr == nil && base.K != "" && len(out.Sections) == 0 {
		return dasherr.Wrapf(dasherr.NotFound, "section %q not found", base.K).ToolResult(), nil
	}

	summary := summarize(out)
	if runErr != nil {
		coded := pipeline.Classify(runErr)
		body := coded.ToBody()
		out.Error = &body
		res := mcp.NewToolResultStructured(out, coded.Text())
		res.Content = []mcp.Content{mcp.NewTextContent(coded.Text()), mcp.NewTextContent(summary)}
		res.IsError = true
		return res, nil
	}
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res, nil
}

// read loads the files named by p through the allow-list. bind carries the
// canonical paths cursors are bound to.
func (d *Dashboard) read(p SourcePaths) (pipeline.Inputs, [2]string, *dasherr.Error) {
	var (
		in   pipeline.Inputs
		bind [2]string
	)
	data, path, err := d.Security.ReadFile(p.HealthinessPath, d.Limits.MaxUploadBytes)
	if err != nil {
		return in, bind, classifyPath(err)
	}
	in.Healthiness = pipeline.Source{Name: filepath.Base(path), Data: data}
	bind[0] = path

	if strings.TrimSpace(p.OKRPath) != "" {
		data, path, err := d.Security.ReadFile(p.OKRPath, d.Limits.MaxUploadBytes)
		if err != nil {
			return in, bind, classifyPath(err)
		}
		in.OKR = pipeline.Source{Name: filepath.Base(path), Data: data}
		bind[1] = path
	}
	return in, bind, nil
}

func classifyPath(err error) *dasherr.Error {
	switch {
	case errors.Is(err, security.ErrNotAllowed):
		return dasherr.Wrap(dasherr.PermissionDenied, err)
	case errors.Is(err, security.ErrUnsupportedExtension):
		return dasherr.Wrap(dasherr.UnsupportedFormat, err)
	case errors.Is(err, security.ErrTooLarge):
		return dasherr.Wrap(dasherr.FileTooLarge, err)
	}
	return dasherr.Wrap(dasherr.OpenFailed, err)
}

// pageOf windows a table section at c.Off and issues the follow-up cursor.
func pageOf(s pipeline.Section, c pagination.Cursor) (SectionPage, error) {
	v := render.NewSectionView(s, c.Off, c.Ps)
	page := SectionPage{SectionView: v}
	if v.Table == nil {
		return page, nil
	}
	next, err := pagination.Next(c, len(v.Table.Rows), v.Table.TotalRows)
	if err != nil {
		return page, err
	}
	page.NextCursor = next
	return page, nil
}

func summarize(out FilterDashboardOutput) string {
	lines := []string{fmt.Sprintf("sections=%d bucket_cities=%v", len(out.Sections), out.BucketCities)}
	for _, s := range out.Sections {
		if s.Table == nil {
			if s.Chart != nil {
				lines = append(lines, fmt.Sprintf("- %s lines=%d periods=%d", s.Key, len(s.Chart.Lines), len(s.Chart.Periods)))
			}
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s rows=%d/%d cols=%d truncated=%v", s.Key, len(s.Table.Rows), s.Table.TotalRows, len(s.Table.Columns), s.Table.Truncated))
	}
	return strings.Join(lines, "\n")
}
