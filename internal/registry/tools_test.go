package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/groups"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/runtime"
	"github.com/vinodismyname/hidash/internal/security"
	"github.com/vinodismyname/hidash/pkg/dasherr"
)

const rawCSV = `,yearweek,location,region,Healthiness_Index_(%),kpi_a,kpi_b
0,202401,A,R1,80,1,2
1,202401,B,R1,40,3,4
2,202402,A,R1,82,5,6
3,202402,B,R1,41,7,8
`

const okrCSV = `,yearweek,location,region,target
0,202401,A,R1,90
1,202401,B,R1,50
`

type fixture struct {
	dir  string
	hi   string
	okr  string
	dash *Dashboard
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	hi := filepath.Join(dir, "hi.csv")
	okr := filepath.Join(dir, "okr.csv")
	require.NoError(t, os.WriteFile(hi, []byte(rawCSV), 0o644))
	require.NoError(t, os.WriteFile(okr, []byte(okrCSV), 0o644))

	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)

	layout := groups.Layout{Groups: []groups.Entry{
		{Key: "value_kpi", Title: "Raw Value KPI", Source: groups.SourceRaw, Start: 1, End: 3},
		{Key: "okr", Title: "Related OKR Target Q1", Source: groups.SourceOKR},
	}}
	limits := runtime.NewLimits(1, 1)
	limits.PreviewRowLimit = 3
	return fixture{
		dir: dir,
		hi:  hi,
		okr: okr,
		dash: &Dashboard{
			Pipeline: pipeline.New(layout, filter.Override, dataset.Options{}, zerolog.Nop()),
			Security: sec,
			Limits:   limits,
		},
	}
}

func text(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func dashboardOut(t *testing.T, res *mcp.CallToolResult) FilterDashboardOutput {
	t.Helper()
	out, ok := res.StructuredContent.(FilterDashboardOutput)
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	return out
}

func TestListFilterOptions(t *testing.T) {
	f := newFixture(t)
	in := ListFilterOptionsInput{SourcePaths: SourcePaths{HealthinessPath: f.hi}}
	in.Periods = []string{"202401"}

	res, err := f.dash.ListFilterOptions(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.False(t, res.IsError, text(res))

	out, ok := res.StructuredContent.(ListFilterOptionsOutput)
	require.True(t, ok)
	require.Equal(t, []string{"202401", "202402"}, out.Options.Periods)
	require.Equal(t, []string{"R1"}, out.Options.Regions)
	require.Equal(t, []string{"A", "B"}, out.Options.Cities)
	require.Equal(t, filter.BucketLabels(), out.Options.Buckets)
}

func TestListFilterOptions_PathErrors(t *testing.T) {
	f := newFixture(t)

	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	stray := filepath.Join(outside, "hi.csv")
	require.NoError(t, os.WriteFile(stray, []byte(rawCSV), 0o644))

	cases := []struct {
		path string
		code dasherr.Code
	}{
		{stray, dasherr.PermissionDenied},
		{filepath.Join(f.dir, "none.csv"), dasherr.OpenFailed},
		{filepath.Join(f.dir, "hi.pdf"), dasherr.UnsupportedFormat},
		{"", dasherr.Validation},
	}
	for _, tc := range cases {
		path, code := tc.path, string(tc.code)
		in := ListFilterOptionsInput{SourcePaths: SourcePaths{HealthinessPath: path}}
		res, err := f.dash.ListFilterOptions(context.Background(), mcp.CallToolRequest{}, in)
		require.NoError(t, err)
		require.True(t, res.IsError, path)
		require.True(t, strings.HasPrefix(text(res), code+":"), "%s: %s", path, text(res))
	}
}

func TestFilterDashboard_BucketOnly(t *testing.T) {
	f := newFixture(t)
	in := FilterDashboardInput{SourcePaths: SourcePaths{HealthinessPath: f.hi, OKRPath: f.okr}}
	in.Buckets = []string{"75 - 84.99"}

	res, err := f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.False(t, res.IsError, text(res))

	out := dashboardOut(t, res)
	require.Equal(t, []string{"A"}, out.BucketCities)

	var keys []string
	for _, s := range out.Sections {
		keys = append(keys, s.Key)
		if s.Table == nil {
			continue
		}
		for _, row := range s.Table.Rows {
			require.Equal(t, "A", row[1], "section %s", s.Key)
		}
	}
	require.Equal(t, []string{"index", "chart", "value_kpi", "okr"}, keys)
	require.Contains(t, text(res), "- value_kpi rows=2/2")
}

func TestFilterDashboard_CityAndBucket(t *testing.T) {
	f := newFixture(t)
	in := FilterDashboardInput{SourcePaths: SourcePaths{HealthinessPath: f.hi, OKRPath: f.okr}}
	in.Cities = []string{"B"}
	in.Buckets = []string{"75 - 84.99"}

	res, err := f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	out := dashboardOut(t, res)

	// The index follows the bucket; column groups follow the city selection.
	require.Equal(t, "index", out.Sections[0].Key)
	for _, row := range out.Sections[0].Table.Rows {
		require.Equal(t, "A", row[1])
	}
	require.Equal(t, "value_kpi", out.Sections[2].Key)
	for _, row := range out.Sections[2].Table.Rows {
		require.Equal(t, "B", row[1])
	}
}

func TestFilterDashboard_CursorPaging(t *testing.T) {
	f := newFixture(t)
	in := FilterDashboardInput{SourcePaths: SourcePaths{HealthinessPath: f.hi, OKRPath: f.okr}}

	res, err := f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	out := dashboardOut(t, res)

	var next string
	for _, s := range out.Sections {
		if s.Key == "value_kpi" {
			require.Len(t, s.Table.Rows, 3)
			require.True(t, s.Table.Truncated)
			next = s.NextCursor
		}
	}
	require.NotEmpty(t, next)

	in.Cursor = next
	res, err = f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.False(t, res.IsError, text(res))
	out = dashboardOut(t, res)
	require.Len(t, out.Sections, 1)
	page := out.Sections[0]
	require.Equal(t, "value_kpi", page.Key)
	require.Equal(t, 3, page.Table.Offset)
	require.Len(t, page.Table.Rows, 1)
	require.Empty(t, page.NextCursor)

	// A cursor is bound to the selection it was issued under.
	in.Regions = []string{"R1"}
	res, err = f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(text(res), "CURSOR_INVALID:"), text(res))
}

func TestFilterDashboard_MissingOKRKeepsEarlierSections(t *testing.T) {
	f := newFixture(t)
	in := FilterDashboardInput{SourcePaths: SourcePaths{HealthinessPath: f.hi}}

	res, err := f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(text(res), "MISSING_UPLOAD:"), text(res))

	out := dashboardOut(t, res)
	require.NotNil(t, out.Error)
	require.Equal(t, dasherr.MissingUpload, out.Error.Code)
	require.Len(t, out.Sections, 3)
}

func TestFilterDashboard_UnknownSectionAndBucket(t *testing.T) {
	f := newFixture(t)
	in := FilterDashboardInput{SourcePaths: SourcePaths{HealthinessPath: f.hi, OKRPath: f.okr}, Section: "nope"}
	res, err := f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text(res), "NOT_FOUND:"), text(res))

	in.Section = ""
	in.Buckets = []string{"0 - 10"}
	res, err = f.dash.FilterDashboard(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text(res), "UNKNOWN_BUCKET:"), text(res))
}

func TestRegisterDashboardTools(t *testing.T) {
	f := newFixture(t)
	srv := server.NewMCPServer("hidash-test", "test", server.WithToolCapabilities(true))
	reg := New()
	RegisterDashboardTools(srv, reg, f.dash)

	require.Equal(t, []string{"filter_dashboard", "list_filter_options"}, reg.Names())
	tool, ok := reg.Get("filter_dashboard")
	require.True(t, ok)
	require.Contains(t, string(tool.RawInputSchema), `"healthiness_path"`)
	require.Contains(t, string(tool.RawInputSchema), `"range"`)
}
